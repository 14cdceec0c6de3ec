package classify

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/genre-classifier/internal/dataset"
	"github.com/RyanBlaney/genre-classifier/internal/experiment"
	"github.com/RyanBlaney/genre-classifier/pkg/audio/wavio"
)

// constClassifier returns the same probability vector for every
// window.
type constClassifier struct {
	classes int
	probs   []float64
	err     error
}

func (f *constClassifier) Predict(sample [][]float64) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]float64(nil), f.probs...), nil
}

func (f *constClassifier) Classes() int { return f.classes }

// blockClassifier scores each window as the class its block position
// implies, so per-file aggregation can be checked end to end.
type blockClassifier struct {
	classes  int
	maxTrack int
	calls    int
}

func (f *blockClassifier) Predict(sample [][]float64) ([]float64, error) {
	block := f.calls / f.maxTrack
	f.calls++

	probs := make([]float64, f.classes)
	for i := range probs {
		probs[i] = 0.25 / float64(f.classes-1)
	}
	probs[block%f.classes] = 0.75
	return probs, nil
}

func (f *blockClassifier) Classes() int { return f.classes }

// predictorExperiment returns a resolved configuration small enough
// to drive the fixed sampler with synthetic clips.
func predictorExperiment() *experiment.Config {
	return &experiment.Config{
		NFilt:           4,
		NFeat:           3,
		NFFT:            16,
		FrameRate:       100,
		SampleLength:    0.1,
		AudioLength:     1,
		Categories:      2,
		MaxClassFiles:   2,
		MaxTrackSamples: 4,
		MaxData:         16,
	}
}

func predictorTable(t *testing.T) *dataset.ClassTable {
	t.Helper()
	table, err := dataset.NewTable([]dataset.Entry{
		{FName: "alpha0.wav", Label: "alpha"},
		{FName: "alpha1.wav", Label: "alpha"},
		{FName: "beta0.wav", Label: "beta"},
		{FName: "beta1.wav", Label: "beta"},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table
}

func predictorBuilder(cfg *experiment.Config, table *dataset.ClassTable) *dataset.Builder {
	clips := make(map[string]*wavio.Clip)
	for i, name := range []string{"alpha0.wav", "alpha1.wav", "beta0.wav", "beta1.wav"} {
		pcm := make([]float64, 100)
		for j := range pcm {
			pcm[j] = 0.4 * math.Sin(2*math.Pi*float64(j)/float64(8+4*i))
		}
		clips[name] = &wavio.Clip{Path: name, PCM: pcm, SampleRate: cfg.FrameRate}
	}

	return dataset.NewBuilder(dataset.BuilderConfig{
		Config: cfg,
		Table:  table,
		Seed:   7,
		ReadFile: func(path string) (*wavio.Clip, error) {
			clip, ok := clips[filepath.Base(path)]
			if !ok {
				return nil, fmt.Errorf("no clip for %s", path)
			}
			return clip, nil
		},
	})
}

func newTestPredictor(t *testing.T) *Predictor {
	t.Helper()
	cfg := predictorExperiment()
	table := predictorTable(t)
	predictor, err := NewPredictor(PredictorConfig{
		Config:  cfg,
		Table:   table,
		Builder: predictorBuilder(cfg, table),
	})
	if err != nil {
		t.Fatalf("NewPredictor failed: %v", err)
	}
	return predictor
}

// TestPredictorRun checks window counts, true class layout and the
// mean-probability scores of a fixed prediction run.
func TestPredictorRun(t *testing.T) {
	predictor := newTestPredictor(t)

	model := &constClassifier{classes: 2, probs: []float64{0.75, 0.25}}
	result, err := predictor.Run(model, 16)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Samples == nil || result.Samples.Len() != 16 {
		t.Fatalf("expected 16 windows, got %+v", result.Samples)
	}
	if len(result.Probs) != 16 || len(result.Scores) != 16 || len(result.TrueClasses) != 16 {
		t.Fatalf("parallel slices out of step: %d %d %d",
			len(result.Probs), len(result.Scores), len(result.TrueClasses))
	}

	// Fixed order is file-major with classes inside: four windows of
	// alpha, four of beta, then the second file of each.
	wantClasses := []int{0, 0, 0, 0, 1, 1, 1, 1, 0, 0, 0, 0, 1, 1, 1, 1}
	for i, want := range wantClasses {
		if result.TrueClasses[i] != want {
			t.Fatalf("window %d: true class %d, want %d", i, result.TrueClasses[i], want)
		}
	}

	for i := range result.Probs {
		if len(result.Probs[i]) != 2 || result.Probs[i][0] != 0.75 {
			t.Errorf("window %d: unexpected probs %v", i, result.Probs[i])
		}
		if result.Scores[i] != 0.5 {
			t.Errorf("window %d: score %f, want 0.5", i, result.Scores[i])
		}
	}
}

// TestPredictorRunClassMismatch checks that a model with the wrong
// output width is refused before any sampling happens.
func TestPredictorRunClassMismatch(t *testing.T) {
	predictor := newTestPredictor(t)

	_, err := predictor.Run(&constClassifier{classes: 3, probs: []float64{0.5, 0.3, 0.2}}, 16)
	if err == nil {
		t.Fatal("expected class count mismatch error")
	}
	if !strings.Contains(err.Error(), "classes") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestPredictorRunPropagatesModelError checks that a failing model
// aborts the run.
func TestPredictorRunPropagatesModelError(t *testing.T) {
	predictor := newTestPredictor(t)

	model := &constClassifier{classes: 2, err: fmt.Errorf("tensor invoke failed")}
	_, err := predictor.Run(model, 16)
	if err == nil || !strings.Contains(err.Error(), "tensor invoke failed") {
		t.Fatalf("expected model error, got %v", err)
	}
}

// TestPredictorByFile checks that window predictions fold back onto
// the right corpus files with averaged probabilities.
func TestPredictorByFile(t *testing.T) {
	predictor := newTestPredictor(t)

	model := &blockClassifier{classes: 2, maxTrack: 4}
	result, err := predictor.Run(model, 16)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	preds, err := predictor.ByFile(result)
	if err != nil {
		t.Fatalf("ByFile failed: %v", err)
	}
	if len(preds) != 4 {
		t.Fatalf("expected 4 file predictions, got %d", len(preds))
	}

	wantFiles := []string{"alpha0.wav", "beta0.wav", "alpha1.wav", "beta1.wav"}
	wantLabels := []string{"alpha", "beta", "alpha", "beta"}
	for i, pred := range preds {
		if pred.FName != wantFiles[i] {
			t.Errorf("block %d: file %s, want %s", i, pred.FName, wantFiles[i])
		}
		if pred.Label != wantLabels[i] {
			t.Errorf("block %d: label %s, want %s", i, pred.Label, wantLabels[i])
		}
		if pred.PredictedLabel != pred.Label {
			t.Errorf("block %d: predicted %s for %s", i, pred.PredictedLabel, pred.Label)
		}
		if pred.Score != 0.5 {
			t.Errorf("block %d: score %f, want 0.5", i, pred.Score)
		}
		if len(pred.Probs) != 2 || pred.Probs[pred.Predicted] != 0.75 {
			t.Errorf("block %d: unexpected averaged probs %v", i, pred.Probs)
		}
	}
}

// TestPredictorByFileShortFile checks that a file whose waveform ran
// out before the track sample cap still gets a prediction averaged
// over the windows it did contribute.
func TestPredictorByFileShortFile(t *testing.T) {
	cfg := predictorExperiment()
	table := predictorTable(t)

	clips := make(map[string]*wavio.Clip)
	for i, name := range []string{"alpha0.wav", "alpha1.wav", "beta0.wav", "beta1.wav"} {
		// alpha1 only fits 3 of the 4 configured windows
		n := 100
		if name == "alpha1.wav" {
			n = 12
		}
		pcm := make([]float64, n)
		for j := range pcm {
			pcm[j] = 0.4 * math.Sin(2*math.Pi*float64(j)/float64(8+4*i))
		}
		clips[name] = &wavio.Clip{Path: name, PCM: pcm, SampleRate: cfg.FrameRate}
	}

	builder := dataset.NewBuilder(dataset.BuilderConfig{
		Config: cfg,
		Table:  table,
		ReadFile: func(path string) (*wavio.Clip, error) {
			clip, ok := clips[filepath.Base(path)]
			if !ok {
				return nil, fmt.Errorf("no clip for %s", path)
			}
			return clip, nil
		},
	})
	predictor, err := NewPredictor(PredictorConfig{Config: cfg, Table: table, Builder: builder})
	if err != nil {
		t.Fatalf("NewPredictor failed: %v", err)
	}

	model := &constClassifier{classes: 2, probs: []float64{0.75, 0.25}}
	result, err := predictor.Run(model, 16)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Samples.Len() != 15 {
		t.Fatalf("expected 15 windows with one short file, got %d", result.Samples.Len())
	}

	preds, err := predictor.ByFile(result)
	if err != nil {
		t.Fatalf("ByFile failed: %v", err)
	}
	if len(preds) != 4 {
		t.Fatalf("expected 4 file predictions, got %d", len(preds))
	}

	wantFiles := []string{"alpha0.wav", "beta0.wav", "alpha1.wav", "beta1.wav"}
	wantLabels := []string{"alpha", "beta", "alpha", "beta"}
	for i, pred := range preds {
		if pred.FName != wantFiles[i] || pred.Label != wantLabels[i] {
			t.Errorf("prediction %d: %s/%s, want %s/%s",
				i, pred.FName, pred.Label, wantFiles[i], wantLabels[i])
		}
		if pred.Score != 0.5 {
			t.Errorf("prediction %d: score %f, want 0.5", i, pred.Score)
		}
		if len(pred.Probs) != 2 || pred.Probs[0] != 0.75 {
			t.Errorf("prediction %d: unexpected averaged probs %v", i, pred.Probs)
		}
	}
}

// TestPredictorByFileGuards checks the aggregation preconditions.
func TestPredictorByFileGuards(t *testing.T) {
	predictor := newTestPredictor(t)

	if _, err := predictor.ByFile(nil); err == nil {
		t.Error("expected error for missing result")
	}

	empty := &Result{Samples: &experiment.SampleSet{}}
	if _, err := predictor.ByFile(empty); err == nil {
		t.Error("expected error for empty result")
	}

	// Windows without file provenance cannot be aggregated
	orphaned := &Result{
		Samples: &experiment.SampleSet{X: make([][][]float64, 4)},
		Probs:   make([][]float64, 4),
		Scores:  make([]float64, 4),
	}
	if _, err := predictor.ByFile(orphaned); err == nil {
		t.Error("expected error for windows without source files")
	}
}

// TestNewPredictorValidation checks the constructor guards.
func TestNewPredictorValidation(t *testing.T) {
	cfg := predictorExperiment()
	table := predictorTable(t)
	builder := predictorBuilder(cfg, table)

	if _, err := NewPredictor(PredictorConfig{Table: table, Builder: builder}); err == nil {
		t.Error("expected error without config")
	}
	if _, err := NewPredictor(PredictorConfig{Config: cfg, Builder: builder}); err == nil {
		t.Error("expected error without table")
	}
	if _, err := NewPredictor(PredictorConfig{Config: cfg, Table: table}); err == nil {
		t.Error("expected error without builder")
	}
}
