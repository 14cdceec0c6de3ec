package classify

import (
	"fmt"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/genre-classifier/internal/dataset"
	"github.com/RyanBlaney/genre-classifier/internal/experiment"
)

// PredictorConfig wires a Predictor to its corpus and sampler.
type PredictorConfig struct {
	Config  *experiment.Config
	Table   *dataset.ClassTable
	Builder *dataset.Builder
	Logger  logging.Logger
}

// Predictor scores the prediction corpus with a trained classifier.
// Prediction always cuts fixed windows, regardless of how training
// samples were drawn, so every window maps back to its source file.
type Predictor struct {
	cfg     *experiment.Config
	table   *dataset.ClassTable
	builder *dataset.Builder
	logger  logging.Logger
}

// Result holds per-window prediction output. The slices are parallel:
// entry i describes the i-th fixed sample window.
type Result struct {
	// Samples is the feature set the windows were scored from.
	Samples *experiment.SampleSet

	// Probs holds the raw per-class probability vector per window.
	Probs [][]float64

	// Scores holds the single-number score per window, the mean over
	// that window's class probabilities.
	Scores []float64

	// TrueClasses holds the class index each window was cut from.
	TrueClasses []int
}

// FilePrediction folds the window predictions for one corpus file
// into an averaged probability vector and a predicted label.
type FilePrediction struct {
	FName          string
	Label          string
	Probs          []float64
	Score          float64
	Predicted      int
	PredictedLabel string
}

// NewPredictor validates the wiring and returns a ready predictor.
func NewPredictor(cfg PredictorConfig) (*Predictor, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("predictor requires an experiment config")
	}
	if cfg.Table == nil {
		return nil, fmt.Errorf("predictor requires a class table")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("predictor requires a sample builder")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Predictor{
		cfg:     cfg.Config,
		table:   cfg.Table,
		builder: cfg.Builder,
		logger:  logger,
	}, nil
}

// Run cuts count fixed windows from the corpus and scores each one
// with the model.
func (p *Predictor) Run(model Classifier, count int) (*Result, error) {
	if model == nil {
		return nil, fmt.Errorf("no model to predict with")
	}
	if model.Classes() != p.cfg.Categories {
		return nil, fmt.Errorf("model scores %d classes, experiment has %d", model.Classes(), p.cfg.Categories)
	}

	p.logger.Info("Building fixed prediction samples", logging.Fields{
		"count": count,
	})
	set, err := p.builder.Fixed(count)
	if err != nil {
		return nil, fmt.Errorf("building prediction samples: %w", err)
	}

	result := &Result{
		Samples:     set,
		Probs:       make([][]float64, set.Len()),
		Scores:      make([]float64, set.Len()),
		TrueClasses: make([]int, set.Len()),
	}
	for i := range set.X {
		probs, err := model.Predict(set.X[i])
		if err != nil {
			return nil, fmt.Errorf("predicting sample %d: %w", i, err)
		}
		result.Probs[i] = probs
		result.Scores[i] = mean(probs)
		result.TrueClasses[i] = Argmax(set.Y[i])
	}

	p.logger.Debug("Prediction complete", logging.Fields{
		"samples": set.Len(),
	})

	return result, nil
}

// ByFile folds window predictions back onto the corpus files they
// were cut from, averaging over each file's consecutive run of
// windows. Files that contributed fewer windows than the track sample
// cap still get a prediction from the windows they have.
func (p *Predictor) ByFile(result *Result) ([]FilePrediction, error) {
	if result == nil || result.Samples == nil {
		return nil, fmt.Errorf("no prediction result")
	}

	set := result.Samples
	total := set.Len()
	if total == 0 {
		return nil, fmt.Errorf("no windows to aggregate")
	}
	if len(set.Sources) != total {
		return nil, fmt.Errorf("%d windows carry %d source files", total, len(set.Sources))
	}

	classes := p.table.Classes()
	if len(classes) < p.cfg.Categories {
		return nil, fmt.Errorf("table has %d classes, experiment needs %d", len(classes), p.cfg.Categories)
	}
	classes = classes[:p.cfg.Categories]

	var preds []FilePrediction
	for start := 0; start < total; {
		end := start
		for end < total && set.Sources[end] == set.Sources[start] {
			end++
		}

		trueClass := result.TrueClasses[start]
		if trueClass >= len(classes) {
			return nil, fmt.Errorf("window %d scored class %d, table has %d", start, trueClass, len(classes))
		}

		n := float64(end - start)
		probs := make([]float64, p.cfg.Categories)
		score := 0.0
		for w := start; w < end; w++ {
			for c, v := range result.Probs[w] {
				probs[c] += v
			}
			score += result.Scores[w]
		}
		for c := range probs {
			probs[c] /= n
		}

		predicted := Argmax(probs)
		preds = append(preds, FilePrediction{
			FName:          set.Sources[start],
			Label:          classes[trueClass],
			Probs:          probs,
			Score:          score / n,
			Predicted:      predicted,
			PredictedLabel: classes[predicted],
		})
		start = end
	}

	return preds, nil
}
