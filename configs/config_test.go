package configs

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestDefaultConfigValid(t *testing.T) {
	config := GetDefaultConfig()
	if err := ValidateConfig(config); err != nil {
		t.Fatalf("default configuration should validate, got: %v", err)
	}

	if config.Audio.NFeat > config.Audio.NFilt {
		t.Errorf("default nfeat %d exceeds nfilt %d", config.Audio.NFeat, config.Audio.NFilt)
	}
	if config.Dataset.MaxData != 0 {
		t.Errorf("default max_data should stay 0 so sizing derives it, got %d", config.Dataset.MaxData)
	}
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	checks := map[string]any{
		"audio.frame_rate":    16000,
		"audio.nfft":          512,
		"training.batch_size": 32,
		"paths.class_table":   "genres.csv",
	}
	for key, want := range checks {
		if got := v.Get(key); got != want {
			t.Errorf("default %s = %v, want %v", key, got, want)
		}
	}
}

func TestSetDefaultsYieldToConfigFile(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigType("yaml")
	err := v.ReadConfig(strings.NewReader(`
audio:
  nfft: 1024
model:
  path: /tmp/custom.tflite
`))
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if got := v.GetInt("audio.nfft"); got != 1024 {
		t.Errorf("config file nfft masked by default: got %d, want 1024", got)
	}
	if got := v.GetString("model.path"); got != "/tmp/custom.tflite" {
		t.Errorf("config file model path masked by default: got %q", got)
	}

	// Keys absent from the file keep their defaults
	if got := v.GetInt("audio.frame_rate"); got != 16000 {
		t.Errorf("unset key lost its default: got %d", got)
	}
}

func TestSetDefaultsKeepsExistingValues(t *testing.T) {
	v := viper.New()
	v.Set("audio.nfft", 1024)
	v.Set("paths.class_table", "custom.csv")
	SetDefaults(v)

	if got := v.GetInt("audio.nfft"); got != 1024 {
		t.Errorf("preset nfft overwritten: got %d, want 1024", got)
	}
	if got := v.GetString("paths.class_table"); got != "custom.csv" {
		t.Errorf("preset class table overwritten: got %q", got)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero frame rate",
			mutate:  func(c *Config) { c.Audio.FrameRate = 0 },
			wantErr: "frame rate",
		},
		{
			name:    "negative sample length",
			mutate:  func(c *Config) { c.Audio.SampleLength = -0.1 },
			wantErr: "sample length",
		},
		{
			name:    "window longer than audio",
			mutate:  func(c *Config) { c.Audio.AudioLength = 0.05 },
			wantErr: "sample window",
		},
		{
			name:    "nfeat above nfilt",
			mutate:  func(c *Config) { c.Audio.NFeat = c.Audio.NFilt + 1 },
			wantErr: "cepstral count",
		},
		{
			name:    "validation mult above one",
			mutate:  func(c *Config) { c.Dataset.ValidationDataMult = 1.5 },
			wantErr: "validation data multiplier",
		},
		{
			name:    "zero epochs",
			mutate:  func(c *Config) { c.Training.Epochs = 0 },
			wantErr: "epochs",
		},
		{
			name:    "zero learning rate",
			mutate:  func(c *Config) { c.Training.LearningRate = 0 },
			wantErr: "learning rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tt.mutate(config)

			err := ValidateConfig(config)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPresetConfigsValid(t *testing.T) {
	presets := []struct {
		name  string
		audio AudioConfig
	}{
		{"high resolution", HighResolutionAudioConfig()},
		{"fast", FastAudioConfig()},
	}
	for _, tt := range presets {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaultConfig()
			config.Audio = tt.audio
			if err := ValidateConfig(config); err != nil {
				t.Errorf("preset should validate, got: %v", err)
			}
		})
	}

	training := []struct {
		name     string
		training TrainingConfig
	}{
		{"long", LongTrainingConfig()},
		{"quick", QuickTrainingConfig()},
	}
	for _, tt := range training {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaultConfig()
			config.Training = tt.training
			if err := ValidateConfig(config); err != nil {
				t.Errorf("preset should validate, got: %v", err)
			}
		})
	}
}
