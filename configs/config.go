package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	OutputFormat string `mapstructure:"output_format"`
	ConfigDir    string `mapstructure:"config_dir"`
	DataDir      string `mapstructure:"data_dir"`

	// Corpus and artifact locations
	Paths PathsConfig `mapstructure:"paths"`

	// Audio windowing and feature extraction
	Audio AudioConfig `mapstructure:"audio"`

	// Dataset sizing and sampling
	Dataset DatasetConfig `mapstructure:"dataset"`

	// Training loop
	Training TrainingConfig `mapstructure:"training"`

	// Trained model loading
	Model ModelConfig `mapstructure:"model"`
}

// PathsConfig contains corpus and artifact locations. Relative paths
// are resolved against the data directory at load time.
type PathsConfig struct {
	ClassTable     string `mapstructure:"class_table"`
	RawAudioDir    string `mapstructure:"raw_audio_dir"`
	AudioDir       string `mapstructure:"audio_dir"`
	SnapshotDir    string `mapstructure:"snapshot_dir"`
	ModelDir       string `mapstructure:"model_dir"`
	ImageDir       string `mapstructure:"image_dir"`
	PredictionsDir string `mapstructure:"predictions_dir"`
}

// AudioConfig contains audio windowing and feature extraction settings
type AudioConfig struct {
	FrameRate       int     `mapstructure:"frame_rate"`
	SampleLength    float64 `mapstructure:"sample_length"`
	AudioStartpoint float64 `mapstructure:"audio_startpoint"`
	AudioLength     float64 `mapstructure:"audio_length"`
	NFilt           int     `mapstructure:"nfilt"`
	NFeat           int     `mapstructure:"nfeat"`
	NFFT            int     `mapstructure:"nfft"`
}

// DatasetConfig contains dataset sizing and sampling settings. Zero
// on the sizing fields means derive from the class table.
type DatasetConfig struct {
	Categories          int     `mapstructure:"categories"`
	MaxClassFiles       int     `mapstructure:"max_class_files"`
	MaxTrackSamples     int     `mapstructure:"max_track_samples"`
	MaxData             int     `mapstructure:"max_data"`
	ValidationDataMult  float64 `mapstructure:"validation_data_mult"`
	UseRandomFeatures   bool    `mapstructure:"use_random_features"`
	UseRandomValidation bool    `mapstructure:"use_random_validation"`
}

// TrainingConfig contains training loop settings. Calls zero means
// train until interrupted.
type TrainingConfig struct {
	Calls          int     `mapstructure:"calls"`
	Epochs         int     `mapstructure:"epochs"`
	BatchSize      int     `mapstructure:"batch_size"`
	LearningRate   float64 `mapstructure:"learning_rate"`
	UseCheckpoints bool    `mapstructure:"use_checkpoints"`
	UseEvaluate    bool    `mapstructure:"use_evaluate"`
}

// ModelConfig contains trained model loading settings
type ModelConfig struct {
	Path    string `mapstructure:"path"`
	Threads int    `mapstructure:"threads"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Audio.FrameRate <= 0 {
		return fmt.Errorf("audio frame rate must be positive")
	}

	if config.Audio.SampleLength <= 0 {
		return fmt.Errorf("audio sample length must be positive")
	}

	if config.Audio.AudioLength < config.Audio.SampleLength {
		return fmt.Errorf("audio length must cover at least one sample window")
	}

	if config.Audio.NFilt <= 0 || config.Audio.NFeat <= 0 || config.Audio.NFFT <= 0 {
		return fmt.Errorf("feature extraction sizes must be positive")
	}

	if config.Audio.NFeat > config.Audio.NFilt {
		return fmt.Errorf("cepstral count cannot exceed filter count")
	}

	if config.Dataset.ValidationDataMult < 0 || config.Dataset.ValidationDataMult > 1 {
		return fmt.Errorf("validation data multiplier must be between 0 and 1")
	}

	if config.Training.Epochs <= 0 {
		return fmt.Errorf("training epochs must be positive")
	}

	if config.Training.BatchSize <= 0 {
		return fmt.Errorf("training batch size must be positive")
	}

	if config.Training.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}

	return nil
}
