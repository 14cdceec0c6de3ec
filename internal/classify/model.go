// Package classify holds the model interfaces, the training loop and
// the prediction pipeline for genre classification experiments.
package classify

import (
	"github.com/RyanBlaney/genre-classifier/internal/experiment"
)

// Classifier scores a single feature matrix against the known classes.
type Classifier interface {
	// Predict returns one probability per class for a feature matrix
	// laid out as coefficient rows by frame columns.
	Predict(sample [][]float64) ([]float64, error)

	// Classes returns the number of classes the model scores.
	Classes() int
}

// FitOptions control a single training call.
type FitOptions struct {
	Epochs    int
	BatchSize int
}

// Trainable is a classifier that can learn from labeled samples and
// persist itself to disk.
type Trainable interface {
	Classifier

	// Fit runs gradient updates over the labeled training set and
	// returns per-epoch metrics. Validation metrics are recorded only
	// when a validation set is given.
	Fit(x [][][]float64, y [][]float64, valX [][][]float64, valY [][]float64, opts FitOptions) (experiment.History, error)

	// Evaluate returns the mean loss and accuracy over a labeled set.
	Evaluate(x [][][]float64, y [][]float64) (loss, accuracy float64, err error)

	// Save writes the model parameters to path.
	Save(path string) error
}

// Argmax returns the index of the largest value, or -1 for an empty
// slice.
func Argmax(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
