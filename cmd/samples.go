package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/genre-classifier/internal/app"
)

var (
	// Samples command flags
	samplesExperiment string
	samplesCount      int
	samplesSeed       int64
	samplesValidation bool
	samplesOverwrite  bool
	samplesOutputFile string
	samplesNoProgress bool
	samplesQuiet      bool
)

// samplesCmd represents the samples command
var samplesCmd = &cobra.Command{
	Use:   "samples [flags]",
	Short: "Build and cache a feature sample set",
	Long: `Build a feature sample set and cache it in the snapshot store
without training anything.

This is the expensive half of a training run, split out so it can be
scheduled separately: the corpus is cut into MFCC windows, normalized
to the global feature range and stored under the configuration
identity. A later train run with the same configuration reuses the
cached set.

Examples:
  # Build the training set for the current configuration
  genre-classifier samples

  # Build the validation variant with a fixed seed
  genre-classifier samples --validation --seed 42

  # Rebuild even when a cached set exists
  genre-classifier samples --overwrite --experiment overrides.yaml`,
	RunE: runSamples,
}

func init() {
	rootCmd.AddCommand(samplesCmd)

	samplesCmd.Flags().StringVarP(&samplesExperiment, "experiment", "e", "",
		"experiment configuration file (yaml or json)")
	samplesCmd.Flags().IntVarP(&samplesCount, "count", "n", 0,
		"number of samples to build (0 = resolved maximum)")
	samplesCmd.Flags().Int64Var(&samplesSeed, "seed", 0,
		"sampler seed (0 = time-seeded)")
	samplesCmd.Flags().BoolVar(&samplesValidation, "validation", false,
		"build the validation variant of the sample set")
	samplesCmd.Flags().BoolVar(&samplesOverwrite, "overwrite", false,
		"rebuild even when a cached set exists")
	samplesCmd.Flags().StringVar(&samplesOutputFile, "output-file", "",
		"write the run summary to a file instead of stdout")
	samplesCmd.Flags().BoolVar(&samplesNoProgress, "no-progress", false,
		"disable the sample build progress bar")
	samplesCmd.Flags().BoolVarP(&samplesQuiet, "quiet", "q", false,
		"suppress the run summary on stdout")
}

// runSamples executes the samples command
func runSamples(cmd *cobra.Command, args []string) error {
	ctx := &app.Context{
		ConfigFile:     configFile,
		ExperimentFile: samplesExperiment,
		OutputFile:     samplesOutputFile,
		OutputFormat:   viper.GetString("output_format"),
		DataDir:        viper.GetString("data_dir"),
		Count:          samplesCount,
		Calls:          -1,
		Seed:           samplesSeed,
		Validation:     samplesValidation,
		Overwrite:      samplesOverwrite,
		NoProgress:     samplesNoProgress,
		Verbose:        viper.GetBool("verbose"),
		Quiet:          samplesQuiet,
	}

	application, err := app.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return application.RunSamples(context.Background())
}
