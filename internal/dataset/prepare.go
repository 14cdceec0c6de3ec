package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/gocarina/gocsv"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"

	"github.com/RyanBlaney/genre-classifier/internal/experiment"
	"github.com/RyanBlaney/genre-classifier/pkg/audio/wavio"
)

// PreparerConfig wires a corpus preparer
type PreparerConfig struct {
	Config    *experiment.Config
	Table     *ClassTable
	RawDir    string
	OutDir    string
	Logger    logging.Logger
	ReadFile  func(path string) (*wavio.Clip, error)
	Progress  bool
	Overwrite bool
}

// PrepareResult summarizes a corpus preparation run
type PrepareResult struct {
	Processed int
	Skipped   int
	Failed    int
	Entries   []Entry
}

// Preparer cuts raw corpus audio to the configured window, resamples
// it to the configured frame rate and writes mono 16-bit WAV files
// the samplers can read
type Preparer struct {
	cfg       *experiment.Config
	table     *ClassTable
	rawDir    string
	outDir    string
	logger    logging.Logger
	readFile  func(path string) (*wavio.Clip, error)
	progress  bool
	overwrite bool
}

// NewPreparer creates a corpus preparer
func NewPreparer(config PreparerConfig) *Preparer {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	readFile := config.ReadFile
	if readFile == nil {
		readFile = wavio.ReadFile
	}

	return &Preparer{
		cfg:       config.Config,
		table:     config.Table,
		rawDir:    config.RawDir,
		outDir:    config.OutDir,
		logger:    logger,
		readFile:  readFile,
		progress:  config.Progress,
		overwrite: config.Overwrite,
	}
}

// Run processes every table entry. Files that cannot be decoded or
// come out empty are logged and counted, not fatal; the returned
// entries describe the refactored corpus for the updated class table.
func (p *Preparer) Run() (*PrepareResult, error) {
	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory: %w", err)
	}

	entries := p.table.Entries()
	result := &PrepareResult{}

	p.logger.Info("Preparing corpus", logging.Fields{
		"files":      len(entries),
		"raw_dir":    p.rawDir,
		"out_dir":    p.outDir,
		"frame_rate": p.cfg.FrameRate,
	})

	body := func(i int) bool {
		entry := entries[i]
		outName := wavName(entry.FName)
		outPath := filepath.Join(p.outDir, outName)

		if !p.overwrite {
			if _, err := os.Stat(outPath); err == nil {
				result.Skipped++
				result.Entries = append(result.Entries, Entry{FName: outName, Label: entry.Label})
				return false
			}
		}

		clip, err := p.readFile(filepath.Join(p.rawDir, entry.FName))
		if err != nil {
			p.logger.Error(err, "Failed to decode raw corpus file", logging.Fields{
				"file": entry.FName,
			})
			result.Failed++
			return false
		}

		trimmed := wavio.Trim(clip, p.cfg.AudioStartpoint, p.cfg.AudioLength)
		if len(trimmed.PCM) == 0 {
			p.logger.Error(fmt.Errorf("empty cut window"), "Skipping raw corpus file", logging.Fields{
				"file": entry.FName,
			})
			result.Failed++
			return false
		}
		if trimmed.Duration() < p.cfg.AudioLength {
			p.logger.Warn("Raw file shorter than configured window", logging.Fields{
				"file":     entry.FName,
				"duration": trimmed.Duration(),
				"expected": p.cfg.AudioLength,
			})
		}

		resampled := wavio.Resample(trimmed, p.cfg.FrameRate)
		resampled.PCM = wavio.Normalize(resampled.PCM)

		if err := wavio.WriteFile(outPath, resampled, 16); err != nil {
			p.logger.Error(err, "Failed to write refactored file", logging.Fields{
				"file": outName,
			})
			result.Failed++
			return false
		}

		result.Processed++
		result.Entries = append(result.Entries, Entry{FName: outName, Label: entry.Label})
		return false
	}

	if p.progress {
		if err := tqdm.With(iterators.Interval(0, len(entries)), "Preparing corpus", func(c interface{}) (brk bool) {
			return body(c.(int))
		}); err != nil {
			return nil, err
		}
	} else {
		for i := range entries {
			body(i)
		}
	}

	p.logger.Info("Corpus preparation finished", logging.Fields{
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	})
	return result, nil
}

// wavName swaps a corpus file extension for .wav
func wavName(fname string) string {
	return strings.TrimSuffix(fname, filepath.Ext(fname)) + ".wav"
}

// WriteEntries writes a class table CSV for the given entries
func WriteEntries(path string, entries []Entry) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create class table: %w", err)
	}
	defer file.Close()

	rows := make([]*Entry, len(entries))
	for i := range entries {
		rows[i] = &entries[i]
	}
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write class table: %w", err)
	}
	return nil
}
