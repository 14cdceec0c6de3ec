// Package experiment defines the run configuration for a
// classification experiment, its identity arithmetic and the snapshot
// store used to resume earlier runs.
package experiment

// Config captures every parameter of a single classification run.
// Zero values on the dataset shape fields mean "derive from the class
// table"; sizing fills them in before sampling starts.
type Config struct {
	// Feature extraction
	NFilt     int
	NFeat     int
	NFFT      int
	FrameRate int

	// Audio windowing, in seconds
	SampleLength    float64
	AudioStartpoint float64
	AudioLength     float64

	// Dataset shape, 0 means derive
	ValidationDataMult float64
	Categories         int
	MaxClassFiles      int
	MaxTrackSamples    int
	MaxData            int

	// Sampling and training switches
	UseRandomFeatures   bool
	UseRandomValidation bool
	UseCheckpoints      bool
	UseEvaluate         bool

	// Training loop, Calls 0 means run until stopped
	Calls     int
	Epochs    int
	BatchSize int

	// Identity assigned before the first save
	ID int64

	// Normalization bounds from the last sample build
	Min float64
	Max float64
}

// Step returns the number of waveform samples in one extraction window
func (c *Config) Step() int {
	return int(c.SampleLength * float64(c.FrameRate))
}

// SampleSet is a built batch of feature matrices with one-hot labels
// and the min/max bounds used to normalize it. Sources names the
// corpus file each sample was cut from, parallel to X.
type SampleSet struct {
	X       [][][]float64
	Y       [][]float64
	Sources []string
	Min     float64
	Max     float64
}

// Len returns the number of samples in the set
func (s *SampleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.X)
}

// History accumulates per-epoch training metrics across fit calls
type History struct {
	Acc     []float64
	ValAcc  []float64
	Loss    []float64
	ValLoss []float64
}

// Append extends the history with another fit call's epochs
func (h *History) Append(other History) {
	h.Acc = append(h.Acc, other.Acc...)
	h.ValAcc = append(h.ValAcc, other.ValAcc...)
	h.Loss = append(h.Loss, other.Loss...)
	h.ValLoss = append(h.ValLoss, other.ValLoss...)
}
