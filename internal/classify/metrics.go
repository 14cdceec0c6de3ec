package classify

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// MetricsCalculator derives summary statistics from prediction runs.
type MetricsCalculator struct {
	logger logging.Logger
}

// NewMetricsCalculator creates a new metrics calculator.
func NewMetricsCalculator(logger logging.Logger) *MetricsCalculator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &MetricsCalculator{
		logger: logger,
	}
}

// ClassReport describes prediction quality for one class.
type ClassReport struct {
	Class     string  `json:"class"`
	Support   int     `json:"support"`
	Correct   int     `json:"correct"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// ScoreStats represents statistical measures of the per-window scores.
type ScoreStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}

// EvaluationReport summarizes a prediction run.
type EvaluationReport struct {
	Accuracy  float64                   `json:"accuracy"`
	Total     int                       `json:"total"`
	Correct   int                       `json:"correct"`
	MeanScore float64                   `json:"mean_score"`
	Scores    *ScoreStats               `json:"score_stats"`
	PerClass  []ClassReport             `json:"per_class"`
	Confusion map[string]map[string]int `json:"confusion"`
}

// AccuracyScore returns the fraction of predictions whose class index
// matches the true class index.
func AccuracyScore(yTrue, yPred []int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("prediction count %d does not match truth count %d", len(yPred), len(yTrue))
	}
	if len(yTrue) == 0 {
		return 0, fmt.Errorf("no predictions to score")
	}

	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}

	return float64(correct) / float64(len(yTrue)), nil
}

// Evaluate scores a window-level prediction run against its true
// classes. Each window counts as the class with the highest
// probability.
func (mc *MetricsCalculator) Evaluate(result *Result, classes []string) (*EvaluationReport, error) {
	if result == nil || len(result.Probs) == 0 {
		return nil, fmt.Errorf("no predictions to evaluate")
	}
	if len(result.Probs) != len(result.TrueClasses) {
		return nil, fmt.Errorf("prediction count %d does not match truth count %d", len(result.Probs), len(result.TrueClasses))
	}

	predicted := make([]int, len(result.Probs))
	for i, probs := range result.Probs {
		predicted[i] = Argmax(probs)
	}

	accuracy, err := AccuracyScore(result.TrueClasses, predicted)
	if err != nil {
		return nil, err
	}

	report := &EvaluationReport{
		Accuracy:  accuracy,
		Total:     len(predicted),
		MeanScore: mean(result.Scores),
		Scores:    mc.scoreStats(result.Scores),
		Confusion: make(map[string]map[string]int),
	}

	perClass := make([]ClassReport, len(classes))
	predictedCounts := make([]int, len(classes))
	for i, class := range classes {
		perClass[i].Class = class
	}

	for i, truth := range result.TrueClasses {
		if truth < 0 || truth >= len(classes) {
			return nil, fmt.Errorf("sample %d has class index %d, expected 0..%d", i, truth, len(classes)-1)
		}
		pred := predicted[i]
		if pred < 0 || pred >= len(classes) {
			return nil, fmt.Errorf("sample %d predicts class index %d, expected 0..%d", i, pred, len(classes)-1)
		}

		perClass[truth].Support++
		predictedCounts[pred]++
		if truth == pred {
			perClass[truth].Correct++
			report.Correct++
		}

		row := report.Confusion[classes[truth]]
		if row == nil {
			row = make(map[string]int)
			report.Confusion[classes[truth]] = row
		}
		row[classes[pred]]++
	}

	for i := range perClass {
		if predictedCounts[i] > 0 {
			perClass[i].Precision = float64(perClass[i].Correct) / float64(predictedCounts[i])
		}
		if perClass[i].Support > 0 {
			perClass[i].Recall = float64(perClass[i].Correct) / float64(perClass[i].Support)
		}
		if sum := perClass[i].Precision + perClass[i].Recall; sum > 0 {
			perClass[i].F1 = 2 * perClass[i].Precision * perClass[i].Recall / sum
		}
	}
	report.PerClass = perClass

	mc.logger.Info("Accuracy score", logging.Fields{
		"accuracy": report.Accuracy,
		"samples":  report.Total,
	})

	return report, nil
}

// scoreStats calculates statistical measures for a score series.
func (mc *MetricsCalculator) scoreStats(data []float64) *ScoreStats {
	if len(data) == 0 {
		return &ScoreStats{Count: 0}
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	stats := &ScoreStats{
		Count:  len(data),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: mc.percentile(sorted, 50),
		P95:    mc.percentile(sorted, 95),
		P99:    mc.percentile(sorted, 99),
	}

	sum := 0.0
	for _, value := range data {
		sum += value
	}
	stats.Mean = sum / float64(len(data))

	sumSquaredDiffs := 0.0
	for _, value := range data {
		diff := value - stats.Mean
		sumSquaredDiffs += diff * diff
	}
	stats.StdDev = math.Sqrt(sumSquaredDiffs / float64(len(data)))

	return mc.sanitizeStats(stats)
}

// sanitizeStats zeroes infinite and NaN values so the report always
// serializes to JSON.
func (mc *MetricsCalculator) sanitizeStats(stats *ScoreStats) *ScoreStats {
	for _, field := range []*float64{
		&stats.Mean, &stats.Median, &stats.P95, &stats.P99,
		&stats.Min, &stats.Max, &stats.StdDev,
	} {
		if math.IsInf(*field, 0) || math.IsNaN(*field) {
			*field = 0
		}
	}
	return stats
}

// percentile calculates the specified percentile of sorted data with
// linear interpolation between neighbors.
func (mc *MetricsCalculator) percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	if lower == upper {
		return sorted[lower]
	}

	weight := pos - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
