package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/genre-classifier/internal/app"
)

var (
	// Predict command flags
	predictModel      string
	predictExperiment string
	predictCount      int
	predictSeed       int64
	predictOutputFile string
	predictNoProgress bool
	predictQuiet      bool
)

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict [flags]",
	Short: "Score the prediction corpus with a trained model",
	Long: `Score the prediction corpus with a trained model.

The corpus is cut into fixed feature windows, every window is scored
against the known genres and the per-window results are folded back
onto their source files. The run writes a dated predictions CSV with
one row per file: the true label, the averaged class probabilities
and the predicted genre.

Examples:
  # Score with a serialized softmax checkpoint
  genre-classifier predict --model models/2025-11-02/133572.model

  # Score with a TensorFlow Lite export, JSON summary to a file
  genre-classifier predict --model export.tflite -o json --output-file report.json

  # Score a reduced corpus with experiment overrides
  genre-classifier predict --model export.tflite --experiment overrides.yaml --count 2000`,
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVarP(&predictModel, "model", "m", "",
		"trained model path (.tflite or serialized checkpoint)")
	predictCmd.Flags().StringVarP(&predictExperiment, "experiment", "e", "",
		"experiment configuration file (yaml or json)")
	predictCmd.Flags().IntVarP(&predictCount, "count", "n", 0,
		"number of windows to score (0 = resolved maximum)")
	predictCmd.Flags().Int64Var(&predictSeed, "seed", 0,
		"sampler seed (0 = time-seeded)")
	predictCmd.Flags().StringVar(&predictOutputFile, "output-file", "",
		"write the run summary to a file instead of stdout")
	predictCmd.Flags().BoolVar(&predictNoProgress, "no-progress", false,
		"disable the sample build progress bar")
	predictCmd.Flags().BoolVarP(&predictQuiet, "quiet", "q", false,
		"suppress the run summary on stdout")
}

// runPredict executes the predict command
func runPredict(cmd *cobra.Command, args []string) error {
	ctx := &app.Context{
		ConfigFile:     configFile,
		ExperimentFile: predictExperiment,
		OutputFile:     predictOutputFile,
		OutputFormat:   viper.GetString("output_format"),
		DataDir:        viper.GetString("data_dir"),
		ModelPath:      predictModel,
		Count:          predictCount,
		Calls:          -1,
		Seed:           predictSeed,
		NoProgress:     predictNoProgress,
		Verbose:        viper.GetBool("verbose"),
		Quiet:          predictQuiet,
	}

	application, err := app.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return application.RunPredict(context.Background())
}
