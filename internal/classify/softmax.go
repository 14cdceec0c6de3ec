package classify

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/genre-classifier/internal/experiment"
)

const (
	defaultLearningRate = 0.05
	defaultBatchSize    = 32

	// lossEpsilon keeps log terms finite for saturated probabilities.
	lossEpsilon = 1e-7
)

// SoftmaxModel is a multinomial logistic regression over flattened
// feature matrices. It is the in-process trainable backend for the
// experiment loop; exported TensorFlow Lite models are handled by
// TFLiteModel instead.
type SoftmaxModel struct {
	weights *mat.Dense    // numClasses x (rows*cols)
	bias    *mat.VecDense // numClasses

	rows         int
	cols         int
	numClasses   int
	learningRate float64
}

// NewSoftmaxModel creates a zero-initialized model for feature
// matrices of the given shape.
func NewSoftmaxModel(rows, cols, numClasses int) (*SoftmaxModel, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid input shape %dx%d", rows, cols)
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("invalid class count %d", numClasses)
	}

	return &SoftmaxModel{
		weights:      mat.NewDense(numClasses, rows*cols, nil),
		bias:         mat.NewVecDense(numClasses, nil),
		rows:         rows,
		cols:         cols,
		numClasses:   numClasses,
		learningRate: defaultLearningRate,
	}, nil
}

// SetLearningRate overrides the gradient step size.
func (m *SoftmaxModel) SetLearningRate(rate float64) {
	if rate > 0 {
		m.learningRate = rate
	}
}

// Classes returns the number of output classes.
func (m *SoftmaxModel) Classes() int {
	return m.numClasses
}

// InputShape returns the expected feature matrix dimensions.
func (m *SoftmaxModel) InputShape() (rows, cols int) {
	return m.rows, m.cols
}

// Predict returns the class probability distribution for one feature
// matrix.
func (m *SoftmaxModel) Predict(sample [][]float64) ([]float64, error) {
	x, err := m.flatten(sample)
	if err != nil {
		return nil, err
	}
	return m.forward(x), nil
}

// Fit runs mini-batch gradient descent for the configured number of
// epochs and returns per-epoch train and validation metrics. Sample
// order is reshuffled between epochs with a fixed seed so repeated
// runs are reproducible.
func (m *SoftmaxModel) Fit(x [][][]float64, y [][]float64, valX [][][]float64, valY [][]float64, opts FitOptions) (experiment.History, error) {
	var history experiment.History

	if len(x) == 0 {
		return history, fmt.Errorf("no training samples")
	}
	if len(x) != len(y) {
		return history, fmt.Errorf("sample count %d does not match label count %d", len(x), len(y))
	}
	if len(valX) != len(valY) {
		return history, fmt.Errorf("validation sample count %d does not match label count %d", len(valX), len(valY))
	}

	epochs := opts.Epochs
	if epochs <= 0 {
		epochs = 1
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	features := make([]*mat.VecDense, len(x))
	labels := make([]*mat.VecDense, len(y))
	for i := range x {
		xv, err := m.flatten(x[i])
		if err != nil {
			return history, fmt.Errorf("training sample %d: %w", i, err)
		}
		if len(y[i]) != m.numClasses {
			return history, fmt.Errorf("label %d has %d classes, model expects %d", i, len(y[i]), m.numClasses)
		}
		features[i] = xv
		labels[i] = mat.NewVecDense(m.numClasses, append([]float64(nil), y[i]...))
	}

	rng := rand.New(rand.NewSource(0))
	order := make([]int, len(features))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		for start := 0; start < len(order); start += batchSize {
			end := start + batchSize
			if end > len(order) {
				end = len(order)
			}
			m.updateBatch(features, labels, order[start:end])
		}

		loss, accuracy, err := m.Evaluate(x, y)
		if err != nil {
			return history, err
		}
		history.Loss = append(history.Loss, loss)
		history.Acc = append(history.Acc, accuracy)

		if len(valX) > 0 {
			valLoss, valAccuracy, err := m.Evaluate(valX, valY)
			if err != nil {
				return history, fmt.Errorf("validation: %w", err)
			}
			history.ValLoss = append(history.ValLoss, valLoss)
			history.ValAcc = append(history.ValAcc, valAccuracy)
		}
	}

	return history, nil
}

// Evaluate computes the mean cross-entropy loss and the accuracy over
// a labeled set.
func (m *SoftmaxModel) Evaluate(x [][][]float64, y [][]float64) (float64, float64, error) {
	if len(x) == 0 {
		return 0, 0, fmt.Errorf("no samples to evaluate")
	}
	if len(x) != len(y) {
		return 0, 0, fmt.Errorf("sample count %d does not match label count %d", len(x), len(y))
	}

	totalLoss := 0.0
	correct := 0
	for i := range x {
		probs, err := m.Predict(x[i])
		if err != nil {
			return 0, 0, fmt.Errorf("sample %d: %w", i, err)
		}
		if len(y[i]) != m.numClasses {
			return 0, 0, fmt.Errorf("label %d has %d classes, model expects %d", i, len(y[i]), m.numClasses)
		}

		for c, target := range y[i] {
			if target > 0 {
				totalLoss -= target * math.Log(math.Max(probs[c], lossEpsilon))
			}
		}
		if Argmax(probs) == Argmax(y[i]) {
			correct++
		}
	}

	return totalLoss / float64(len(x)), float64(correct) / float64(len(x)), nil
}

// Save writes the model parameters to path, creating the parent
// directory if needed.
func (m *SoftmaxModel) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating model file: %w", err)
	}
	defer file.Close()

	state := softmaxState{
		Rows:         m.rows,
		Cols:         m.cols,
		NumClasses:   m.numClasses,
		LearningRate: m.learningRate,
		Weights:      append([]float64(nil), m.weights.RawMatrix().Data...),
		Bias:         append([]float64(nil), m.bias.RawVector().Data...),
	}
	if err := gob.NewEncoder(file).Encode(&state); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}

	return nil
}

// LoadSoftmax reads a model previously written by Save.
func LoadSoftmax(path string) (*SoftmaxModel, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer file.Close()

	var state softmaxState
	if err := gob.NewDecoder(file).Decode(&state); err != nil {
		return nil, fmt.Errorf("decoding model %s: %w", path, err)
	}

	if state.Rows <= 0 || state.Cols <= 0 || state.NumClasses <= 0 {
		return nil, fmt.Errorf("model %s has invalid shape", path)
	}
	featureLen := state.Rows * state.Cols
	if len(state.Weights) != state.NumClasses*featureLen {
		return nil, fmt.Errorf("model %s has %d weights, expected %d", path, len(state.Weights), state.NumClasses*featureLen)
	}
	if len(state.Bias) != state.NumClasses {
		return nil, fmt.Errorf("model %s has %d bias terms, expected %d", path, len(state.Bias), state.NumClasses)
	}

	model := &SoftmaxModel{
		weights:      mat.NewDense(state.NumClasses, featureLen, state.Weights),
		bias:         mat.NewVecDense(state.NumClasses, state.Bias),
		rows:         state.Rows,
		cols:         state.Cols,
		numClasses:   state.NumClasses,
		learningRate: state.LearningRate,
	}
	if model.learningRate <= 0 {
		model.learningRate = defaultLearningRate
	}

	return model, nil
}

// softmaxState is the serialized form of a model.
type softmaxState struct {
	Rows         int
	Cols         int
	NumClasses   int
	LearningRate float64
	Weights      []float64
	Bias         []float64
}

// updateBatch applies one averaged gradient step over the selected
// samples.
func (m *SoftmaxModel) updateBatch(features, labels []*mat.VecDense, batch []int) {
	gradW := mat.NewDense(m.numClasses, m.rows*m.cols, nil)
	gradB := mat.NewVecDense(m.numClasses, nil)
	delta := mat.NewVecDense(m.numClasses, nil)

	for _, idx := range batch {
		probs := m.forward(features[idx])
		for c := 0; c < m.numClasses; c++ {
			delta.SetVec(c, probs[c]-labels[idx].AtVec(c))
		}
		gradW.RankOne(gradW, 1, delta, features[idx])
		gradB.AddVec(gradB, delta)
	}

	step := m.learningRate / float64(len(batch))
	gradW.Scale(step, gradW)
	m.weights.Sub(m.weights, gradW)
	m.bias.AddScaledVec(m.bias, -step, gradB)
}

// forward computes class probabilities for a flattened sample.
func (m *SoftmaxModel) forward(x *mat.VecDense) []float64 {
	z := mat.NewVecDense(m.numClasses, nil)
	z.MulVec(m.weights, x)
	z.AddVec(z, m.bias)
	return softmax(z.RawVector().Data)
}

// flatten lays a feature matrix out row-major and validates its shape
// against the model input.
func (m *SoftmaxModel) flatten(sample [][]float64) (*mat.VecDense, error) {
	if len(sample) != m.rows {
		return nil, fmt.Errorf("sample has %d feature rows, model expects %d", len(sample), m.rows)
	}

	data := make([]float64, 0, m.rows*m.cols)
	for i, row := range sample {
		if len(row) != m.cols {
			return nil, fmt.Errorf("sample row %d has %d frames, model expects %d", i, len(row), m.cols)
		}
		data = append(data, row...)
	}

	return mat.NewVecDense(len(data), data), nil
}

// softmax converts logits into a probability distribution. The
// maximum logit is subtracted first to keep the exponents finite.
func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	probs := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		e := math.Exp(v - maxLogit)
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}

	return probs
}
