package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/genre-classifier/configs"
	"github.com/RyanBlaney/genre-classifier/internal/experiment"
)

// ExperimentFile overrides parts of the application configuration for
// a single run. Field names follow the importance-field vocabulary so
// a file reads like the identity it produces. Boolean switches and
// the call count are pointers because false and zero are meaningful
// overrides.
type ExperimentFile struct {
	Name string `yaml:"name" json:"name"`

	// Feature extraction
	NFilt     int `yaml:"nfilt" json:"nfilt"`
	NFeat     int `yaml:"nfeat" json:"nfeat"`
	NFFT      int `yaml:"nfft" json:"nfft"`
	FrameRate int `yaml:"frame_rate" json:"frame_rate"`

	// Audio windowing, in seconds
	SampleLength    float64 `yaml:"sample_length" json:"sample_length"`
	AudioStartpoint float64 `yaml:"audio_startpoint" json:"audio_startpoint"`
	AudioLength     float64 `yaml:"audio_length" json:"audio_length"`

	// Dataset shape
	ValidationDataMult float64 `yaml:"validation_data_mult" json:"validation_data_mult"`
	Categories         int     `yaml:"cat" json:"cat"`
	MaxClassFiles      int     `yaml:"max_class_files" json:"max_class_files"`
	MaxTrackSamples    int     `yaml:"max_track_samples" json:"max_track_samples"`
	MaxData            int     `yaml:"max_data" json:"max_data"`

	// Sampling and training switches
	UseRandomFeatures   *bool `yaml:"use_random_in_feat" json:"use_random_in_feat"`
	UseRandomValidation *bool `yaml:"use_random_in_val_feat" json:"use_random_in_val_feat"`
	UseCheckpoints      *bool `yaml:"use_checkpoints" json:"use_checkpoints"`
	UseEvaluate         *bool `yaml:"use_evaluate" json:"use_evaluate"`

	// Training loop
	Calls     *int `yaml:"calls" json:"calls"`
	Epochs    int  `yaml:"epochs" json:"epochs"`
	BatchSize int  `yaml:"batch_size" json:"batch_size"`
}

// loadExperimentFile loads experiment overrides from a file
func loadExperimentFile(filePath string) (*ExperimentFile, error) {
	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("experiment file does not exist: %s", filePath)
	}

	// Determine file format
	ext := filepath.Ext(filePath)
	switch ext {
	case ".yaml", ".yml":
		return loadExperimentFromYAML(filePath)
	case ".json":
		return loadExperimentFromJSON(filePath)
	default:
		// Try YAML first, then JSON
		if cfg, err := loadExperimentFromYAML(filePath); err == nil {
			return cfg, nil
		}
		return loadExperimentFromJSON(filePath)
	}
}

// loadExperimentFromYAML loads from YAML file
func loadExperimentFromYAML(filePath string) (*ExperimentFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open YAML experiment file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML experiment file: %w", err)
	}

	var config ExperimentFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML experiment file: %w", err)
	}

	return &config, nil
}

// loadExperimentFromJSON loads from JSON file
func loadExperimentFromJSON(filePath string) (*ExperimentFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON experiment file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON experiment file: %w", err)
	}

	var config ExperimentFile
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON experiment file: %w", err)
	}

	return &config, nil
}

// buildExperimentConfig maps the application configuration onto a run
// configuration
func buildExperimentConfig(appConfig *configs.Config) *experiment.Config {
	return &experiment.Config{
		NFilt:     appConfig.Audio.NFilt,
		NFeat:     appConfig.Audio.NFeat,
		NFFT:      appConfig.Audio.NFFT,
		FrameRate: appConfig.Audio.FrameRate,

		SampleLength:    appConfig.Audio.SampleLength,
		AudioStartpoint: appConfig.Audio.AudioStartpoint,
		AudioLength:     appConfig.Audio.AudioLength,

		ValidationDataMult: appConfig.Dataset.ValidationDataMult,
		Categories:         appConfig.Dataset.Categories,
		MaxClassFiles:      appConfig.Dataset.MaxClassFiles,
		MaxTrackSamples:    appConfig.Dataset.MaxTrackSamples,
		MaxData:            appConfig.Dataset.MaxData,

		UseRandomFeatures:   appConfig.Dataset.UseRandomFeatures,
		UseRandomValidation: appConfig.Dataset.UseRandomValidation,
		UseCheckpoints:      appConfig.Training.UseCheckpoints,
		UseEvaluate:         appConfig.Training.UseEvaluate,

		Calls:     appConfig.Training.Calls,
		Epochs:    appConfig.Training.Epochs,
		BatchSize: appConfig.Training.BatchSize,
	}
}

// mergeExperimentConfig merges base config, experiment file, and CLI
// flags
func mergeExperimentConfig(base *experiment.Config, file *ExperimentFile, ctx *Context) *experiment.Config {
	merged := *base

	if file != nil {
		if file.NFilt > 0 {
			merged.NFilt = file.NFilt
		}
		if file.NFeat > 0 {
			merged.NFeat = file.NFeat
		}
		if file.NFFT > 0 {
			merged.NFFT = file.NFFT
		}
		if file.FrameRate > 0 {
			merged.FrameRate = file.FrameRate
		}
		if file.SampleLength > 0 {
			merged.SampleLength = file.SampleLength
		}
		if file.AudioStartpoint > 0 {
			merged.AudioStartpoint = file.AudioStartpoint
		}
		if file.AudioLength > 0 {
			merged.AudioLength = file.AudioLength
		}
		if file.ValidationDataMult > 0 {
			merged.ValidationDataMult = file.ValidationDataMult
		}
		if file.Categories > 0 {
			merged.Categories = file.Categories
		}
		if file.MaxClassFiles > 0 {
			merged.MaxClassFiles = file.MaxClassFiles
		}
		if file.MaxTrackSamples > 0 {
			merged.MaxTrackSamples = file.MaxTrackSamples
		}
		if file.MaxData > 0 {
			merged.MaxData = file.MaxData
		}
		if file.UseRandomFeatures != nil {
			merged.UseRandomFeatures = *file.UseRandomFeatures
		}
		if file.UseRandomValidation != nil {
			merged.UseRandomValidation = *file.UseRandomValidation
		}
		if file.UseCheckpoints != nil {
			merged.UseCheckpoints = *file.UseCheckpoints
		}
		if file.UseEvaluate != nil {
			merged.UseEvaluate = *file.UseEvaluate
		}
		if file.Calls != nil {
			merged.Calls = *file.Calls
		}
		if file.Epochs > 0 {
			merged.Epochs = file.Epochs
		}
		if file.BatchSize > 0 {
			merged.BatchSize = file.BatchSize
		}
	}

	// Override with CLI flags
	if ctx.Count > 0 {
		merged.MaxData = ctx.Count
	}
	if ctx.Calls >= 0 {
		merged.Calls = ctx.Calls
	}

	applyExperimentDefaults(&merged)

	return &merged
}

// applyExperimentDefaults fills feature extraction and training
// fields that are still unset. Dataset sizing fields stay zero so the
// resolver derives them from the class table.
func applyExperimentDefaults(cfg *experiment.Config) {
	defaults := configs.GetDefaultAudioConfig()

	if cfg.NFilt == 0 {
		cfg.NFilt = defaults.NFilt
	}
	if cfg.NFeat == 0 {
		cfg.NFeat = defaults.NFeat
	}
	if cfg.NFFT == 0 {
		cfg.NFFT = defaults.NFFT
	}
	if cfg.FrameRate == 0 {
		cfg.FrameRate = defaults.FrameRate
	}
	if cfg.SampleLength == 0 {
		cfg.SampleLength = defaults.SampleLength
	}
	if cfg.AudioLength == 0 {
		cfg.AudioLength = defaults.AudioLength
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = configs.GetDefaultTrainingConfig().Epochs
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = configs.GetDefaultTrainingConfig().BatchSize
	}
}

// ValidateExperimentConfig validates a merged run configuration
func ValidateExperimentConfig(cfg *experiment.Config) error {
	if cfg.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive")
	}
	if cfg.SampleLength <= 0 {
		return fmt.Errorf("sample length must be positive")
	}
	if cfg.AudioLength < cfg.SampleLength {
		return fmt.Errorf("audio length %.2fs must cover at least one %.2fs sample window", cfg.AudioLength, cfg.SampleLength)
	}
	if cfg.NFilt <= 0 || cfg.NFeat <= 0 || cfg.NFFT <= 0 {
		return fmt.Errorf("feature extraction sizes must be positive")
	}
	if cfg.NFeat > cfg.NFilt {
		return fmt.Errorf("cepstral count %d cannot exceed filter count %d", cfg.NFeat, cfg.NFilt)
	}
	if cfg.ValidationDataMult < 0 || cfg.ValidationDataMult > 1 {
		return fmt.Errorf("validation data multiplier must be between 0 and 1")
	}
	if cfg.Calls < 0 {
		return fmt.Errorf("call count cannot be negative")
	}
	if cfg.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	return nil
}

// GenerateExampleConfig generates an example experiment file
func GenerateExampleConfig(outputFile string) error {
	randomFeatures := false
	useCheckpoints := true
	calls := 5

	exampleConfig := &ExperimentFile{
		Name: "example",

		NFilt:     26,
		NFeat:     13,
		NFFT:      512,
		FrameRate: 16000,

		SampleLength:    0.1,
		AudioStartpoint: 0,
		AudioLength:     30,

		ValidationDataMult: 1,
		Categories:         10,
		MaxClassFiles:      80,

		UseRandomFeatures: &randomFeatures,
		UseCheckpoints:    &useCheckpoints,

		Calls:     &calls,
		Epochs:    10,
		BatchSize: 32,
	}

	// Write to YAML file
	data, err := yaml.Marshal(exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("✅ Example experiment configuration written to: %s\n", outputFile)
	return nil
}

// ValidateExperimentFile validates an experiment file
func ValidateExperimentFile(configFile string) error {
	file, err := loadExperimentFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load experiment file: %w", err)
	}

	// Merge over defaults so partial files validate the way a run
	// would see them
	base := buildExperimentConfig(configs.GetDefaultConfig())
	merged := mergeExperimentConfig(base, file, &Context{Calls: -1})

	if err := ValidateExperimentConfig(merged); err != nil {
		return fmt.Errorf("experiment validation failed: %w", err)
	}

	fmt.Printf("✅ Experiment configuration is valid: %s\n", configFile)
	fmt.Printf("   - Features: %d cepstra over %d filters, %d-point FFT\n", merged.NFeat, merged.NFilt, merged.NFFT)
	fmt.Printf("   - Windows: %.2fs at %d Hz from %.1fs of audio\n", merged.SampleLength, merged.FrameRate, merged.AudioLength)
	fmt.Printf("   - Identity: %d\n", experiment.Identity(merged, experiment.ImportanceFields))

	return nil
}

// resolvePaths anchors relative corpus and artifact paths at the data
// directory
func resolvePaths(cfg *configs.Config) {
	if cfg.DataDir == "" {
		return
	}

	anchor := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(cfg.DataDir, path)
	}

	cfg.Paths.ClassTable = anchor(cfg.Paths.ClassTable)
	cfg.Paths.RawAudioDir = anchor(cfg.Paths.RawAudioDir)
	cfg.Paths.AudioDir = anchor(cfg.Paths.AudioDir)
	cfg.Paths.SnapshotDir = anchor(cfg.Paths.SnapshotDir)
	cfg.Paths.ModelDir = anchor(cfg.Paths.ModelDir)
	cfg.Paths.ImageDir = anchor(cfg.Paths.ImageDir)
	cfg.Paths.PredictionsDir = anchor(cfg.Paths.PredictionsDir)
}
