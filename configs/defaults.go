package configs

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SetDefaults registers default configuration values for all
// components. The defaults sit in viper's lowest-precedence layer, so
// config files, environment variables and flags all override them.
func SetDefaults(v *viper.Viper) {
	// Application defaults
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("output_format", "table")

	// Corpus and artifact locations (relative to the data directory)
	v.SetDefault("paths.class_table", "genres.csv")
	v.SetDefault("paths.raw_audio_dir", "wavfiles")
	v.SetDefault("paths.audio_dir", "clean")
	v.SetDefault("paths.snapshot_dir", "pickles")
	v.SetDefault("paths.model_dir", "models")
	v.SetDefault("paths.image_dir", "images")
	v.SetDefault("paths.predictions_dir", "predictions")

	// Audio windowing and feature extraction defaults
	v.SetDefault("audio.frame_rate", 16000)
	v.SetDefault("audio.sample_length", 0.1)
	v.SetDefault("audio.audio_startpoint", 0.0)
	v.SetDefault("audio.audio_length", 30.0)
	v.SetDefault("audio.nfilt", 26)
	v.SetDefault("audio.nfeat", 13)
	v.SetDefault("audio.nfft", 512)

	// Dataset defaults, sizing fields stay 0 so they derive from the
	// class table
	v.SetDefault("dataset.categories", 0)
	v.SetDefault("dataset.max_class_files", 0)
	v.SetDefault("dataset.max_track_samples", 0)
	v.SetDefault("dataset.max_data", 0)
	v.SetDefault("dataset.validation_data_mult", 1.0)
	v.SetDefault("dataset.use_random_features", false)
	v.SetDefault("dataset.use_random_validation", false)

	// Training defaults
	v.SetDefault("training.calls", 1)
	v.SetDefault("training.epochs", 10)
	v.SetDefault("training.batch_size", 32)
	v.SetDefault("training.learning_rate", 0.01)
	v.SetDefault("training.use_checkpoints", false)
	v.SetDefault("training.use_evaluate", false)

	// Model loading defaults
	v.SetDefault("model.path", "")
	v.SetDefault("model.threads", 1)
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		// Application settings defaults
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "table",
		ConfigDir:    filepath.Join(home, ".config", "genre-classifier"),
		DataDir:      filepath.Join(home, ".local", "share", "genre-classifier"),

		// Corpus and artifact location defaults
		Paths: GetDefaultPathsConfig(),

		// Audio windowing and feature extraction defaults
		Audio: GetDefaultAudioConfig(),

		// Dataset sizing and sampling defaults
		Dataset: GetDefaultDatasetConfig(),

		// Training loop defaults
		Training: GetDefaultTrainingConfig(),

		// Trained model loading defaults
		Model: GetDefaultModelConfig(),
	}
}

// GetDefaultPathsConfig returns default corpus and artifact locations
func GetDefaultPathsConfig() PathsConfig {
	return PathsConfig{
		ClassTable:     "genres.csv",
		RawAudioDir:    "wavfiles",
		AudioDir:       "clean",
		SnapshotDir:    "pickles",
		ModelDir:       "models",
		ImageDir:       "images",
		PredictionsDir: "predictions",
	}
}

// GetDefaultAudioConfig returns default audio processing settings
func GetDefaultAudioConfig() AudioConfig {
	return AudioConfig{
		FrameRate:       16000,
		SampleLength:    0.1,
		AudioStartpoint: 0,
		AudioLength:     30,
		NFilt:           26,
		NFeat:           13,
		NFFT:            512,
	}
}

// GetDefaultDatasetConfig returns default dataset sizing settings
func GetDefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Categories:          0,
		MaxClassFiles:       0,
		MaxTrackSamples:     0,
		MaxData:             0,
		ValidationDataMult:  1.0,
		UseRandomFeatures:   false,
		UseRandomValidation: false,
	}
}

// GetDefaultTrainingConfig returns default training loop settings
func GetDefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Calls:          1,
		Epochs:         10,
		BatchSize:      32,
		LearningRate:   0.01,
		UseCheckpoints: false,
		UseEvaluate:    false,
	}
}

// GetDefaultModelConfig returns default trained model loading settings
func GetDefaultModelConfig() ModelConfig {
	return ModelConfig{
		Path:    "",
		Threads: 1,
	}
}

// HighResolutionAudioConfig returns feature extraction settings with
// a denser filterbank for slower, finer-grained runs
func HighResolutionAudioConfig() AudioConfig {
	return AudioConfig{
		FrameRate:       22050,
		SampleLength:    0.1,
		AudioStartpoint: 0,
		AudioLength:     30,
		NFilt:           40,
		NFeat:           20,
		NFFT:            1024,
	}
}

// FastAudioConfig returns feature extraction settings optimized for
// iteration speed over accuracy
func FastAudioConfig() AudioConfig {
	return AudioConfig{
		FrameRate:       8000,
		SampleLength:    0.1,
		AudioStartpoint: 0,
		AudioLength:     10,
		NFilt:           20,
		NFeat:           10,
		NFFT:            256,
	}
}

// LongTrainingConfig returns training settings for unattended runs
// with checkpointing on
func LongTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Calls:          50,
		Epochs:         20,
		BatchSize:      64,
		LearningRate:   0.005,
		UseCheckpoints: true,
		UseEvaluate:    true,
	}
}

// QuickTrainingConfig returns training settings for development runs
func QuickTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Calls:          1,
		Epochs:         5,
		BatchSize:      16,
		LearningRate:   0.01,
		UseCheckpoints: false,
		UseEvaluate:    false,
	}
}
