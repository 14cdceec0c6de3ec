package classify

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/genre-classifier/internal/experiment"
)

// shuffleSeed fixes the pre-call permutation so repeated runs see the
// same sample order.
const shuffleSeed = 0

// CheckpointLoader restores a trainable model from a checkpoint file.
type CheckpointLoader func(path string) (Trainable, error)

// TrainerConfig wires a Trainer to its experiment state and output
// directories.
type TrainerConfig struct {
	Config   *experiment.Config
	Store    *experiment.Store
	ModelDir string
	ImageDir string
	Logger   logging.Logger

	// LoadCheckpoint restores checkpoints on resume. Defaults to the
	// softmax loader.
	LoadCheckpoint CheckpointLoader
}

// Trainer drives repeated fit calls over prepared sample sets. The
// checkpoint, the training curves and the config snapshot are
// rewritten after every call, so an interrupted run loses at most the
// call in flight.
type Trainer struct {
	cfg            *experiment.Config
	store          *experiment.Store
	modelDir       string
	imageDir       string
	logger         logging.Logger
	loadCheckpoint CheckpointLoader
}

// FitResult reports what a training run did.
type FitResult struct {
	// Model is the trained model. On resume this is the checkpoint
	// restore rather than the model passed in.
	Model Trainable

	// Resumed is true when training continued from a checkpoint.
	Resumed bool

	// Calls is the number of completed fit calls.
	Calls int
}

// NewTrainer validates the wiring and returns a ready trainer.
func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("trainer requires an experiment config")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("trainer requires a snapshot store")
	}
	if cfg.ModelDir == "" {
		return nil, fmt.Errorf("trainer requires a model directory")
	}
	if cfg.ImageDir == "" {
		return nil, fmt.Errorf("trainer requires an image directory")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	load := cfg.LoadCheckpoint
	if load == nil {
		load = func(path string) (Trainable, error) {
			return LoadSoftmax(path)
		}
	}

	return &Trainer{
		cfg:            cfg.Config,
		store:          cfg.Store,
		modelDir:       cfg.ModelDir,
		imageDir:       cfg.ImageDir,
		logger:         logger,
		loadCheckpoint: load,
	}, nil
}

// Fit trains model on the snapshot's sample sets. With Calls == 0 it
// runs until ctx is cancelled, otherwise it runs the configured
// number of calls. Cancellation between calls is a clean stop: the
// result reports how many calls completed and everything up to the
// last call is already on disk.
func (t *Trainer) Fit(ctx context.Context, model Trainable, snap *experiment.Snapshot) (*FitResult, error) {
	if model == nil {
		return nil, fmt.Errorf("no model to train")
	}
	if snap == nil || snap.Data == nil || snap.Data.Len() == 0 {
		return nil, fmt.Errorf("no training samples in snapshot")
	}
	if len(snap.Data.X) != len(snap.Data.Y) {
		return nil, fmt.Errorf("snapshot has %d samples but %d labels", len(snap.Data.X), len(snap.Data.Y))
	}
	if snap.VData != nil && len(snap.VData.X) != len(snap.VData.Y) {
		return nil, fmt.Errorf("snapshot has %d validation samples but %d labels", len(snap.VData.X), len(snap.VData.Y))
	}

	result := &FitResult{Model: model}

	if t.cfg.UseCheckpoints {
		if path, ok := experiment.FindCheckpoint(t.modelDir, t.cfg.ID); ok {
			restored, err := t.loadCheckpoint(path)
			if err != nil {
				t.logger.Error(err, "Checkpoint load failed, training fresh model", logging.Fields{
					"path": path,
				})
			} else {
				t.logger.Info("Continuing training from checkpoint", logging.Fields{
					"path": path,
				})
				result.Model = restored
				result.Resumed = true
			}
		}
	}
	model = result.Model

	for call := 0; t.cfg.Calls == 0 || call < t.cfg.Calls; call++ {
		select {
		case <-ctx.Done():
			t.logger.Info("Training stopped", logging.Fields{
				"completed_calls": result.Calls,
			})
			return result, nil
		default:
		}

		if t.cfg.Calls == 0 {
			t.logger.Info("Call", logging.Fields{"call": call + 1})
		} else {
			t.logger.Info("Call", logging.Fields{
				"call": call + 1,
				"of":   t.cfg.Calls,
			})
		}

		// Curves are drawn from the history accumulated before this
		// call.
		if err := Draw(snap.History, t.imageDir, t.cfg.ID); err != nil {
			return result, fmt.Errorf("drawing training curves: %w", err)
		}

		t.logger.Debug("Shuffling samples")
		trainX, trainY := shufflePair(snap.Data.X, snap.Data.Y, shuffleSeed)
		var valX [][][]float64
		var valY [][]float64
		if snap.VData != nil && snap.VData.Len() > 0 {
			valX, valY = shufflePair(snap.VData.X, snap.VData.Y, shuffleSeed)
		}

		history, err := model.Fit(trainX, trainY, valX, valY, FitOptions{
			Epochs:    t.cfg.Epochs,
			BatchSize: t.cfg.BatchSize,
		})
		if err != nil {
			return result, fmt.Errorf("fit call %d: %w", call+1, err)
		}
		snap.History.Append(history)

		if t.cfg.UseEvaluate {
			loss, accuracy, err := model.Evaluate(trainX, trainY)
			if err != nil {
				return result, fmt.Errorf("evaluating call %d: %w", call+1, err)
			}
			t.logger.Info("Score", logging.Fields{
				"loss":     loss,
				"accuracy": accuracy,
			})
		}

		if err := model.Save(experiment.CheckpointPath(t.modelDir, t.cfg.ID)); err != nil {
			return result, fmt.Errorf("saving checkpoint: %w", err)
		}
		if err := t.store.Save(snap); err != nil {
			return result, fmt.Errorf("saving config snapshot: %w", err)
		}
		result.Calls++
	}

	return result, nil
}

// shufflePair permutes samples and labels together with a fixed
// permutation.
func shufflePair(x [][][]float64, y [][]float64, seed int64) ([][][]float64, [][]float64) {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(x))

	outX := make([][][]float64, len(x))
	outY := make([][]float64, len(y))
	for i, p := range perm {
		outX[i] = x[p]
		outY[i] = y[p]
	}

	return outX, outY
}
