package dataset

import (
	"fmt"

	"github.com/RyanBlaney/genre-classifier/internal/experiment"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// MaximumData returns the largest sample count the resolved
// configuration can produce from the corpus
func MaximumData(cfg *experiment.Config) int {
	return cfg.MaxClassFiles * cfg.Categories * cfg.MaxTrackSamples
}

// MaximumSamples returns how many sample windows fit into the
// configured audio length
func MaximumSamples(cfg *experiment.Config) int {
	if cfg.SampleLength <= 0 {
		return 0
	}
	return int(cfg.AudioLength / cfg.SampleLength)
}

// Refactor rounds a requested sample count down to the nearest
// multiple of the category count so fixed-mode batches stay balanced
func Refactor(cfg *experiment.Config, n int) int {
	if cfg.Categories <= 0 || n < 0 {
		return 0
	}
	return n / cfg.Categories * cfg.Categories
}

// Resolve fills unset dataset shape fields from the class table and
// clamps overrides that exceed their computed maxima. Field order
// matters: categories feed the file cap, both feed the track sample
// cap, and all three feed the data cap.
func Resolve(cfg *experiment.Config, table *ClassTable, logger logging.Logger) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	classCount := len(table.Classes())
	if cfg.Categories == 0 {
		cfg.Categories = classCount
	} else if cfg.Categories > classCount {
		logger.Warn("Configured categories exceed available classes", logging.Fields{
			"configured": cfg.Categories,
			"maximum":    classCount,
		})
		cfg.Categories = classCount
	}

	smallest := table.SmallestClassSize()
	if cfg.MaxClassFiles == 0 {
		cfg.MaxClassFiles = smallest
	} else if cfg.MaxClassFiles > smallest {
		logger.Warn("Configured class file cap exceeds smallest class", logging.Fields{
			"configured": cfg.MaxClassFiles,
			"maximum":    smallest,
		})
		cfg.MaxClassFiles = smallest
	}

	maxSamples := MaximumSamples(cfg)
	if cfg.MaxTrackSamples == 0 {
		cfg.MaxTrackSamples = maxSamples
	} else if cfg.MaxTrackSamples > maxSamples {
		logger.Warn("Configured track sample cap exceeds audio window", logging.Fields{
			"configured": cfg.MaxTrackSamples,
			"maximum":    maxSamples,
		})
		cfg.MaxTrackSamples = maxSamples
	}

	maxData := MaximumData(cfg)
	if cfg.MaxData == 0 {
		cfg.MaxData = maxData
	} else if cfg.MaxData > maxData {
		logger.Warn("Configured data cap exceeds corpus maximum", logging.Fields{
			"configured": cfg.MaxData,
			"maximum":    maxData,
		})
		cfg.MaxData = maxData
	}

	cutFrom, cutTo := CutWindow(cfg)
	logger.Info("Dataset sizing resolved", logging.Fields{
		"categories":      cfg.Categories,
		"files_per_class": cfg.MaxClassFiles,
		"track_samples":   cfg.MaxTrackSamples,
		"max_data":        cfg.MaxData,
		"cut_from":        cutFrom,
		"cut_to":          cutTo,
	})
}

// CutWindow formats the configured cut range as MM:SS timestamps
func CutWindow(cfg *experiment.Config) (string, string) {
	return clockString(cfg.AudioStartpoint), clockString(cfg.AudioStartpoint + cfg.AudioLength)
}

func clockString(seconds float64) string {
	m := int(seconds / 60)
	s := int(seconds) - m*60
	return fmt.Sprintf("%02d:%02d", m, s)
}
