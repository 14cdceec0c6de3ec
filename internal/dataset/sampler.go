package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"

	"github.com/RyanBlaney/genre-classifier/internal/experiment"
	"github.com/RyanBlaney/genre-classifier/pkg/audio/mfcc"
	"github.com/RyanBlaney/genre-classifier/pkg/audio/wavio"
)

// BuilderConfig wires a sample builder. ReadFile defaults to the
// wavio decoder, Seed 0 means time-seeded randomness, Progress
// enables the terminal progress bar.
type BuilderConfig struct {
	Config   *experiment.Config
	Table    *ClassTable
	AudioDir string
	Logger   logging.Logger
	Seed     int64
	ReadFile func(path string) (*wavio.Clip, error)
	Progress bool
}

// Builder assembles normalized sample sets from the audio corpus.
// The configuration must be resolved against the class table before
// samples are built.
type Builder struct {
	cfg      *experiment.Config
	table    *ClassTable
	audioDir string
	logger   logging.Logger
	rng      *rand.Rand
	readFile func(path string) (*wavio.Clip, error)
	extract  *mfcc.Extractor
	progress bool
}

// NewBuilder creates a sample builder
func NewBuilder(config BuilderConfig) *Builder {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	readFile := config.ReadFile
	if readFile == nil {
		readFile = wavio.ReadFile
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Builder{
		cfg:      config.Config,
		table:    config.Table,
		audioDir: config.AudioDir,
		logger:   logger,
		rng:      rand.New(rand.NewSource(seed)),
		readFile: readFile,
		extract:  mfcc.NewExtractor(config.Config.NFeat, config.Config.NFilt, config.Config.NFFT),
		progress: config.Progress,
	}
}

// Random builds a sample set from uniformly random windows, iterating
// class-major with one sample per class per round until the
// refactored count is reached. Empty or too-short waveforms are
// skipped with a logged error.
func (b *Builder) Random(count int) (*experiment.SampleSet, error) {
	target := Refactor(b.cfg, count)
	if target <= 0 {
		return nil, fmt.Errorf("sample count %d resolves to zero", count)
	}

	classes := b.classes()
	rounds := target / len(classes)
	step := b.cfg.Step()
	raw := newRawSet()

	b.logger.Info("Building random samples", logging.Fields{
		"target": target,
		"rounds": rounds,
		"step":   step,
	})

	round := func(int) error {
		for classIndex, class := range classes {
			files := b.table.Files(class)
			fname := files[b.rng.Intn(len(files))]

			clip, err := b.readFile(filepath.Join(b.audioDir, fname))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", fname, err)
			}
			if len(clip.PCM) == 0 {
				b.logger.Error(fmt.Errorf("empty waveform"), "Skipping corpus file", logging.Fields{
					"file": fname,
				})
				continue
			}
			if len(clip.PCM) <= step {
				b.logger.Warn("Waveform shorter than sample window", logging.Fields{
					"file":    fname,
					"samples": len(clip.PCM),
					"step":    step,
				})
				continue
			}

			start := b.rng.Intn(len(clip.PCM) - step)
			feat, err := b.extract.Transform(clip.PCM[start:start+step], clip.SampleRate)
			if err != nil {
				return fmt.Errorf("failed to extract features from %s: %w", fname, err)
			}
			raw.add(feat, classIndex, fname)
		}
		return nil
	}

	if err := b.iterate(rounds, "Building random samples", round); err != nil {
		return nil, err
	}
	return raw.finalize(b.cfg.Categories)
}

// Fixed builds a deterministic sample set: per class it takes files
// in table order and, per file, every consecutive window start from 0
// up to the track sample cap. Prediction scoring relies on this mode
// being reproducible.
func (b *Builder) Fixed(count int) (*experiment.SampleSet, error) {
	target := Refactor(b.cfg, count)
	if target <= 0 {
		return nil, fmt.Errorf("sample count %d resolves to zero", count)
	}
	if b.cfg.MaxTrackSamples <= 0 {
		return nil, fmt.Errorf("track sample cap not resolved")
	}

	classes := b.classes()
	files := target / b.cfg.MaxTrackSamples / len(classes)
	step := b.cfg.Step()
	raw := newRawSet()

	b.logger.Info("Building fixed samples", logging.Fields{
		"target":          target,
		"files_per_class": files,
		"step":            step,
	})

	perFile := func(fileIndex int) error {
		for classIndex, class := range classes {
			names := b.table.Files(class)
			if fileIndex >= len(names) {
				return fmt.Errorf("class %s has %d files, need %d", class, len(names), fileIndex+1)
			}
			fname := names[fileIndex]

			clip, err := b.readFile(filepath.Join(b.audioDir, fname))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", fname, err)
			}
			if len(clip.PCM) == 0 {
				b.logger.Error(fmt.Errorf("empty waveform"), "Skipping corpus file", logging.Fields{
					"file": fname,
				})
				continue
			}

			for audioIndex := 0; audioIndex < b.cfg.MaxTrackSamples; audioIndex++ {
				if audioIndex+step > len(clip.PCM) {
					b.logger.Warn("Window past end of waveform", logging.Fields{
						"file":   fname,
						"window": audioIndex,
					})
					break
				}
				feat, err := b.extract.Transform(clip.PCM[audioIndex:audioIndex+step], clip.SampleRate)
				if err != nil {
					return fmt.Errorf("failed to extract features from %s: %w", fname, err)
				}
				raw.add(feat, classIndex, fname)
			}
		}
		return nil
	}

	if err := b.iterate(files, "Building fixed samples", perFile); err != nil {
		return nil, err
	}
	return raw.finalize(b.cfg.Categories)
}

// iterate runs the loop body n times, behind a progress bar when
// enabled. The first body error aborts the loop and is returned as-is;
// a progress bar failure only surfaces when the body itself succeeded.
func (b *Builder) iterate(n int, title string, body func(int) error) error {
	var bodyErr error
	step := func(i int) bool {
		bodyErr = body(i)
		return bodyErr != nil
	}

	if b.progress {
		if err := tqdm.With(iterators.Interval(0, n), title, func(c interface{}) (brk bool) {
			return step(c.(int))
		}); err != nil && bodyErr == nil {
			return fmt.Errorf("progress bar failed: %w", err)
		}
	} else {
		for i := 0; i < n; i++ {
			if step(i) {
				break
			}
		}
	}
	return bodyErr
}

// classes returns the class labels in use, truncated to the resolved
// category count
func (b *Builder) classes() []string {
	names := b.table.Classes()
	if b.cfg.Categories > 0 && b.cfg.Categories < len(names) {
		names = names[:b.cfg.Categories]
	}
	return names
}

// rawSet accumulates unnormalized feature matrices with per-window
// file provenance and tracks the global value range in the same pass
type rawSet struct {
	x       [][][]float64
	y       []int
	sources []string
	min     float64
	max     float64
}

func newRawSet() *rawSet {
	return &rawSet{min: math.Inf(1), max: math.Inf(-1)}
}

func (r *rawSet) add(feat [][]float64, classIndex int, fname string) {
	for _, row := range feat {
		for _, v := range row {
			if v < r.min {
				r.min = v
			}
			if v > r.max {
				r.max = v
			}
		}
	}
	r.x = append(r.x, feat)
	r.y = append(r.y, classIndex)
	r.sources = append(r.sources, fname)
}

// finalize applies global min-max normalization and one-hot encodes
// the labels
func (r *rawSet) finalize(categories int) (*experiment.SampleSet, error) {
	if len(r.x) == 0 {
		return nil, fmt.Errorf("no samples produced")
	}
	if !(r.max > r.min) {
		return nil, fmt.Errorf("degenerate feature range: min %f max %f", r.min, r.max)
	}

	span := r.max - r.min
	for _, matrix := range r.x {
		for _, row := range matrix {
			for i, v := range row {
				row[i] = (v - r.min) / span
			}
		}
	}

	labels := make([][]float64, len(r.y))
	for i, classIndex := range r.y {
		labels[i] = oneHot(classIndex, categories)
	}

	return &experiment.SampleSet{X: r.x, Y: labels, Sources: r.sources, Min: r.min, Max: r.max}, nil
}

// oneHot encodes a class index into a categorical vector
func oneHot(classIndex, categories int) []float64 {
	v := make([]float64, categories)
	if classIndex >= 0 && classIndex < categories {
		v[classIndex] = 1
	}
	return v
}
