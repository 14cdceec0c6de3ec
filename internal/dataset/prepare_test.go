package dataset

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/genre-classifier/internal/experiment"
	"github.com/RyanBlaney/genre-classifier/pkg/audio/wavio"
)

func prepareConfig() *experiment.Config {
	return &experiment.Config{
		FrameRate:       100,
		SampleLength:    0.1,
		AudioStartpoint: 0.5,
		AudioLength:     1.0,
	}
}

func rawClip(n int) *wavio.Clip {
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = 0.4 * math.Sin(2*math.Pi*11*float64(i)/200)
	}
	return &wavio.Clip{PCM: pcm, SampleRate: 200}
}

// TestPreparerRun checks the cut, resample and write pipeline against
// real WAV output.
func TestPreparerRun(t *testing.T) {
	table, err := NewTable([]Entry{
		{FName: "one.mp3", Label: "rock"},
		{FName: "two.mp3", Label: "jazz"},
	})
	if err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	preparer := NewPreparer(PreparerConfig{
		Config: prepareConfig(),
		Table:  table,
		RawDir: "raw",
		OutDir: outDir,
		ReadFile: corpusReader(map[string]*wavio.Clip{
			"one.mp3": rawClip(400),
			"two.mp3": rawClip(400),
		}),
	})

	result, err := preparer.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Processed != 2 || result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Entries) != 2 || result.Entries[0].FName != "one.wav" {
		t.Fatalf("expected renamed entries, got %+v", result.Entries)
	}

	clip, err := wavio.ReadFile(filepath.Join(outDir, "one.wav"))
	if err != nil {
		t.Fatalf("failed to read prepared file: %v", err)
	}
	if clip.SampleRate != 100 {
		t.Errorf("expected resampled rate 100, got %d", clip.SampleRate)
	}
	// 1s cut out of the 2s raw clip, resampled from 200 to 100
	if len(clip.PCM) != 100 {
		t.Errorf("expected 100 samples, got %d", len(clip.PCM))
	}
}

// TestPreparerSkipsExisting checks that a second run leaves prepared
// files alone unless overwrite is requested.
func TestPreparerSkipsExisting(t *testing.T) {
	table, err := NewTable([]Entry{{FName: "one.mp3", Label: "rock"}})
	if err != nil {
		t.Fatal(err)
	}

	config := PreparerConfig{
		Config: prepareConfig(),
		Table:  table,
		RawDir: "raw",
		OutDir: t.TempDir(),
		ReadFile: corpusReader(map[string]*wavio.Clip{
			"one.mp3": rawClip(400),
		}),
	}

	if _, err := NewPreparer(config).Run(); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	result, err := NewPreparer(config).Run()
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if result.Skipped != 1 || result.Processed != 0 {
		t.Errorf("expected skip on second run, got %+v", result)
	}
	if len(result.Entries) != 1 {
		t.Errorf("skipped files must still appear in entries, got %+v", result.Entries)
	}

	config.Overwrite = true
	result, err = NewPreparer(config).Run()
	if err != nil {
		t.Fatalf("overwrite run failed: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("expected overwrite to reprocess, got %+v", result)
	}
}

// TestPreparerCountsFailures checks that undecodable files are
// counted and do not abort the run.
func TestPreparerCountsFailures(t *testing.T) {
	table, err := NewTable([]Entry{
		{FName: "good.mp3", Label: "rock"},
		{FName: "bad.mp3", Label: "jazz"},
	})
	if err != nil {
		t.Fatal(err)
	}

	preparer := NewPreparer(PreparerConfig{
		Config: prepareConfig(),
		Table:  table,
		RawDir: "raw",
		OutDir: t.TempDir(),
		ReadFile: corpusReader(map[string]*wavio.Clip{
			"good.mp3": rawClip(400),
		}),
	})

	result, err := preparer.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Processed != 1 || result.Failed != 1 {
		t.Errorf("expected one success and one failure, got %+v", result)
	}
	if len(result.Entries) != 1 {
		t.Errorf("failed files must not appear in entries, got %+v", result.Entries)
	}
}

// TestWriteEntries checks the refactored table export round trip.
func TestWriteEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	entries := []Entry{
		{FName: "one.wav", Label: "rock"},
		{FName: "two.wav", Label: "jazz"},
	}

	if err := WriteEntries(path, entries); err != nil {
		t.Fatalf("WriteEntries failed: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", table.Len())
	}
}

// TestWavName checks extension handling.
func TestWavName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"song.mp3", "song.wav"},
		{"song.wav", "song.wav"},
		{"song", "song.wav"},
		{"a.b.flac", "a.b.wav"},
	}
	for _, tt := range tests {
		if got := wavName(tt.in); got != tt.expected {
			t.Errorf("wavName(%s): expected %s, got %s", tt.in, tt.expected, got)
		}
	}
}
