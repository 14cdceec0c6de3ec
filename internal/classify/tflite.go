package classify

import (
	"fmt"
	"os"
	"runtime"

	"github.com/tphakala/go-tflite"
)

// TFLiteModel scores feature matrices with a TensorFlow Lite model.
// It is inference only: models trained elsewhere are exported to
// .tflite and loaded here for prediction runs.
type TFLiteModel struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	numClasses  int
	inputLen    int
}

// LoadTFLite loads a TensorFlow Lite model from disk and prepares an
// interpreter for repeated single-sample inference. With threads <= 0
// the interpreter uses all available cores.
func LoadTFLite(path string, threads int) (*TFLiteModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("cannot load model from %s", path)
	}

	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, userData interface{}) {
		fmt.Fprintln(os.Stderr, msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter")
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	input := interpreter.GetInputTensor(0)
	output := interpreter.GetOutputTensor(0)
	if input == nil || output == nil {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("model is missing an input or output tensor")
	}

	return &TFLiteModel{
		model:       model,
		options:     options,
		interpreter: interpreter,
		numClasses:  output.Dim(output.NumDims() - 1),
		inputLen:    len(input.Float32s()),
	}, nil
}

// Predict copies the flattened sample into the input tensor, invokes
// the interpreter and returns one probability per class.
func (m *TFLiteModel) Predict(sample [][]float64) ([]float64, error) {
	input := m.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}

	buf := input.Float32s()
	flat := flattenFloat32(sample)
	if len(flat) != len(buf) {
		return nil, fmt.Errorf("sample has %d values, model expects %d", len(flat), len(buf))
	}
	copy(buf, flat)

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed")
	}

	output := m.interpreter.GetOutputTensor(0)
	if output == nil {
		return nil, fmt.Errorf("cannot get output tensor")
	}

	raw := output.Float32s()
	probs := make([]float64, len(raw))
	for i, v := range raw {
		probs[i] = float64(v)
	}

	return probs, nil
}

// Classes returns the size of the model output layer.
func (m *TFLiteModel) Classes() int {
	return m.numClasses
}

// InputLen returns the flattened input tensor size.
func (m *TFLiteModel) InputLen() int {
	return m.inputLen
}

// Close releases the interpreter and model resources.
func (m *TFLiteModel) Close() {
	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	if m.options != nil {
		m.options.Delete()
		m.options = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
}

// flattenFloat32 lays a feature matrix out row-major as float32.
func flattenFloat32(sample [][]float64) []float32 {
	size := 0
	for _, row := range sample {
		size += len(row)
	}

	out := make([]float32, 0, size)
	for _, row := range sample {
		for _, v := range row {
			out = append(out, float32(v))
		}
	}

	return out
}
