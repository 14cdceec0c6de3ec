package classify

import (
	"context"
	"fmt"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/genre-classifier/internal/experiment"
)

// stubModel records trainer interactions without doing any math.
type stubModel struct {
	classes  int
	fits     int
	evals    int
	saves    []string
	fitErr   error
	onFit    func()
	lastX    [][][]float64
	lastY    [][]float64
	lastValX [][][]float64
	lastValY [][]float64
	lastOpts FitOptions
}

func (s *stubModel) Predict(sample [][]float64) ([]float64, error) {
	probs := make([]float64, s.classes)
	for i := range probs {
		probs[i] = 1.0 / float64(s.classes)
	}
	return probs, nil
}

func (s *stubModel) Classes() int { return s.classes }

func (s *stubModel) Fit(x [][][]float64, y [][]float64, valX [][][]float64, valY [][]float64, opts FitOptions) (experiment.History, error) {
	s.fits++
	s.lastX, s.lastY = x, y
	s.lastValX, s.lastValY = valX, valY
	s.lastOpts = opts
	if s.onFit != nil {
		s.onFit()
	}
	if s.fitErr != nil {
		return experiment.History{}, s.fitErr
	}
	return experiment.History{
		Acc:     []float64{0.6, 0.7},
		ValAcc:  []float64{0.5, 0.6},
		Loss:    []float64{0.9, 0.8},
		ValLoss: []float64{1.0, 0.9},
	}, nil
}

func (s *stubModel) Evaluate(x [][][]float64, y [][]float64) (float64, float64, error) {
	s.evals++
	return 0.8, 0.75, nil
}

func (s *stubModel) Save(path string) error {
	s.saves = append(s.saves, path)
	return os.WriteFile(path, []byte("stub weights"), 0o644)
}

func trainerFixture(t *testing.T, cfg *experiment.Config) (TrainerConfig, *experiment.Store) {
	t.Helper()
	store := experiment.NewStore(t.TempDir(), nil)
	return TrainerConfig{
		Config:   cfg,
		Store:    store,
		ModelDir: t.TempDir(),
		ImageDir: t.TempDir(),
	}, store
}

func trainerConfig() *experiment.Config {
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
		Calls:           3,
		Epochs:          2,
		BatchSize:       4,
		ID:              905,
	}
}

func trainerSnapshot(cfg *experiment.Config) *experiment.Snapshot {
	data := &experiment.SampleSet{Min: 0, Max: 1}
	for i := 0; i < 6; i++ {
		data.X = append(data.X, [][]float64{{float64(i)}})
		data.Y = append(data.Y, []float64{float64(i), float64(i)})
	}
	vdata := &experiment.SampleSet{
		X: [][][]float64{{{100}}, {{101}}},
		Y: [][]float64{{100, 100}, {101, 101}},
	}
	return &experiment.Snapshot{Config: *cfg, Data: data, VData: vdata}
}

func TestNewTrainerValidation(t *testing.T) {
	cfg := trainerConfig()
	valid, _ := trainerFixture(t, cfg)

	_, err := NewTrainer(valid)
	require.NoError(t, err)

	broken := valid
	broken.Config = nil
	_, err = NewTrainer(broken)
	assert.Error(t, err)

	broken = valid
	broken.Store = nil
	_, err = NewTrainer(broken)
	assert.Error(t, err)

	broken = valid
	broken.ModelDir = ""
	_, err = NewTrainer(broken)
	assert.Error(t, err)

	broken = valid
	broken.ImageDir = ""
	_, err = NewTrainer(broken)
	assert.Error(t, err)
}

func TestTrainerFitRunsConfiguredCalls(t *testing.T) {
	cfg := trainerConfig()
	tc, store := trainerFixture(t, cfg)

	trainer, err := NewTrainer(tc)
	require.NoError(t, err)

	model := &stubModel{classes: 2}
	snap := trainerSnapshot(cfg)

	result, err := trainer.Fit(context.Background(), model, snap)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Calls)
	assert.False(t, result.Resumed)
	assert.Equal(t, 3, model.fits)
	assert.Equal(t, FitOptions{Epochs: 2, BatchSize: 4}, model.lastOpts)

	// Two epochs of history per call.
	assert.Len(t, snap.History.Acc, 6)
	assert.Len(t, snap.History.ValLoss, 6)

	// The checkpoint lands under the experiment identity.
	require.Len(t, model.saves, 3)
	assert.Equal(t, experiment.CheckpointPath(tc.ModelDir, cfg.ID), model.saves[0])
	_, ok := experiment.FindCheckpoint(tc.ModelDir, cfg.ID)
	assert.True(t, ok)

	// Curves are drawn each call.
	for _, path := range []string{
		AccuracyImagePath(tc.ImageDir, cfg.ID),
		LossImagePath(tc.ImageDir, cfg.ID),
	} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	// The snapshot is persisted with the accumulated history.
	found, err := store.FindCompatible(cfg)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Len(t, found.History.Acc, 6)
}

func TestTrainerFitResumesFromCheckpoint(t *testing.T) {
	cfg := trainerConfig()
	cfg.UseCheckpoints = true
	cfg.Calls = 1
	tc, _ := trainerFixture(t, cfg)

	ckpt := experiment.CheckpointPath(tc.ModelDir, cfg.ID)
	require.NoError(t, os.WriteFile(ckpt, []byte("previous weights"), 0o644))

	restored := &stubModel{classes: 2}
	tc.LoadCheckpoint = func(path string) (Trainable, error) {
		assert.Equal(t, ckpt, path)
		return restored, nil
	}

	trainer, err := NewTrainer(tc)
	require.NoError(t, err)

	fresh := &stubModel{classes: 2}
	result, err := trainer.Fit(context.Background(), fresh, trainerSnapshot(cfg))
	require.NoError(t, err)

	assert.True(t, result.Resumed)
	assert.Same(t, restored, result.Model)
	assert.Equal(t, 1, restored.fits)
	assert.Equal(t, 0, fresh.fits)
}

func TestTrainerFitCheckpointLoadFailureFallsBack(t *testing.T) {
	cfg := trainerConfig()
	cfg.UseCheckpoints = true
	cfg.Calls = 1
	tc, _ := trainerFixture(t, cfg)

	ckpt := experiment.CheckpointPath(tc.ModelDir, cfg.ID)
	require.NoError(t, os.WriteFile(ckpt, []byte("garbage"), 0o644))

	tc.LoadCheckpoint = func(path string) (Trainable, error) {
		return nil, fmt.Errorf("corrupt checkpoint")
	}

	trainer, err := NewTrainer(tc)
	require.NoError(t, err)

	fresh := &stubModel{classes: 2}
	result, err := trainer.Fit(context.Background(), fresh, trainerSnapshot(cfg))
	require.NoError(t, err)

	assert.False(t, result.Resumed)
	assert.Equal(t, 1, fresh.fits)
}

func TestTrainerFitSkipsCheckpointWhenDisabled(t *testing.T) {
	cfg := trainerConfig()
	cfg.UseCheckpoints = false
	cfg.Calls = 1
	tc, _ := trainerFixture(t, cfg)

	ckpt := experiment.CheckpointPath(tc.ModelDir, cfg.ID)
	require.NoError(t, os.WriteFile(ckpt, []byte("previous weights"), 0o644))

	loaderCalled := false
	tc.LoadCheckpoint = func(path string) (Trainable, error) {
		loaderCalled = true
		return &stubModel{classes: 2}, nil
	}

	trainer, err := NewTrainer(tc)
	require.NoError(t, err)

	fresh := &stubModel{classes: 2}
	result, err := trainer.Fit(context.Background(), fresh, trainerSnapshot(cfg))
	require.NoError(t, err)

	assert.False(t, loaderCalled)
	assert.False(t, result.Resumed)
	assert.Equal(t, 1, fresh.fits)
}

func TestTrainerFitUnlimitedStopsOnCancel(t *testing.T) {
	cfg := trainerConfig()
	cfg.Calls = 0
	tc, _ := trainerFixture(t, cfg)

	trainer, err := NewTrainer(tc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	model := &stubModel{classes: 2}
	model.onFit = func() {
		if model.fits == 2 {
			cancel()
		}
	}

	result, err := trainer.Fit(ctx, model, trainerSnapshot(cfg))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Calls)
	assert.Equal(t, 2, model.fits)
}

func TestTrainerFitShufflesTrainAndValidation(t *testing.T) {
	cfg := trainerConfig()
	cfg.Calls = 1
	tc, _ := trainerFixture(t, cfg)

	trainer, err := NewTrainer(tc)
	require.NoError(t, err)

	model := &stubModel{classes: 2}
	snap := trainerSnapshot(cfg)

	_, err = trainer.Fit(context.Background(), model, snap)
	require.NoError(t, err)

	// Samples and labels stay paired under the permutation.
	require.Len(t, model.lastX, 6)
	values := make([]float64, 0, 6)
	for i := range model.lastX {
		v := model.lastX[i][0][0]
		assert.Equal(t, v, model.lastY[i][0])
		values = append(values, v)
	}
	sort.Float64s(values)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, values)

	// Validation samples come from the validation set, not the
	// training set.
	require.Len(t, model.lastValX, 2)
	for i := range model.lastValX {
		v := model.lastValX[i][0][0]
		assert.GreaterOrEqual(t, v, 100.0)
		assert.Equal(t, v, model.lastValY[i][0])
	}
}

func TestTrainerFitEvaluateFlag(t *testing.T) {
	cfg := trainerConfig()
	cfg.Calls = 2
	cfg.UseEvaluate = true
	tc, _ := trainerFixture(t, cfg)

	trainer, err := NewTrainer(tc)
	require.NoError(t, err)

	model := &stubModel{classes: 2}
	_, err = trainer.Fit(context.Background(), model, trainerSnapshot(cfg))
	require.NoError(t, err)
	assert.Equal(t, 2, model.evals)

	cfg.UseEvaluate = false
	model = &stubModel{classes: 2}
	_, err = trainer.Fit(context.Background(), model, trainerSnapshot(cfg))
	require.NoError(t, err)
	assert.Equal(t, 0, model.evals)
}

func TestTrainerFitPropagatesFitError(t *testing.T) {
	cfg := trainerConfig()
	tc, _ := trainerFixture(t, cfg)

	trainer, err := NewTrainer(tc)
	require.NoError(t, err)

	model := &stubModel{classes: 2, fitErr: fmt.Errorf("diverged")}
	result, err := trainer.Fit(context.Background(), model, trainerSnapshot(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diverged")
	assert.Equal(t, 0, result.Calls)
}

func TestTrainerFitRejectsBadSnapshot(t *testing.T) {
	cfg := trainerConfig()
	tc, _ := trainerFixture(t, cfg)

	trainer, err := NewTrainer(tc)
	require.NoError(t, err)

	model := &stubModel{classes: 2}

	_, err = trainer.Fit(context.Background(), model, nil)
	assert.Error(t, err)

	_, err = trainer.Fit(context.Background(), model, &experiment.Snapshot{Config: *cfg})
	assert.Error(t, err)

	ragged := trainerSnapshot(cfg)
	ragged.Data.Y = ragged.Data.Y[:2]
	_, err = trainer.Fit(context.Background(), model, ragged)
	assert.Error(t, err)
}

func TestShufflePairDeterministic(t *testing.T) {
	x := make([][][]float64, 10)
	y := make([][]float64, 10)
	for i := range x {
		x[i] = [][]float64{{float64(i)}}
		y[i] = []float64{float64(i)}
	}

	x1, y1 := shufflePair(x, y, shuffleSeed)
	x2, y2 := shufflePair(x, y, shuffleSeed)
	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)

	for i := range x1 {
		assert.Equal(t, x1[i][0][0], y1[i][0])
	}

	// The source slices are untouched.
	for i := range x {
		assert.Equal(t, float64(i), x[i][0][0])
	}
}
