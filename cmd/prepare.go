package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/genre-classifier/internal/app"
)

var (
	// Prepare command flags
	prepareExperiment string
	prepareOverwrite  bool
	prepareOutputFile string
	prepareNoProgress bool
	prepareQuiet      bool
)

// prepareCmd represents the prepare command
var prepareCmd = &cobra.Command{
	Use:   "prepare [flags]",
	Short: "Refactor the raw audio corpus into the training corpus",
	Long: `Refactor the raw audio corpus into the training corpus.

Every file listed in the class table is read from the raw corpus
directory, trimmed to the configured audio window, resampled to the
configured frame rate, downmixed to mono and written to the clean
corpus as 16-bit WAV. The class table is rewritten to describe the
refactored corpus: failed files are dropped and extensions become
.wav.

Files already present in the clean corpus are skipped unless
--overwrite is given.

Examples:
  # Prepare the corpus with the configured window
  genre-classifier prepare

  # Re-cut everything after changing the audio window
  genre-classifier prepare --overwrite --experiment overrides.yaml`,
	RunE: runPrepare,
}

func init() {
	rootCmd.AddCommand(prepareCmd)

	prepareCmd.Flags().StringVarP(&prepareExperiment, "experiment", "e", "",
		"experiment configuration file (yaml or json)")
	prepareCmd.Flags().BoolVar(&prepareOverwrite, "overwrite", false,
		"re-cut files already present in the clean corpus")
	prepareCmd.Flags().StringVar(&prepareOutputFile, "output-file", "",
		"write the run summary to a file instead of stdout")
	prepareCmd.Flags().BoolVar(&prepareNoProgress, "no-progress", false,
		"disable the preparation progress bar")
	prepareCmd.Flags().BoolVarP(&prepareQuiet, "quiet", "q", false,
		"suppress the run summary on stdout")
}

// runPrepare executes the prepare command
func runPrepare(cmd *cobra.Command, args []string) error {
	ctx := &app.Context{
		ConfigFile:     configFile,
		ExperimentFile: prepareExperiment,
		OutputFile:     prepareOutputFile,
		OutputFormat:   viper.GetString("output_format"),
		DataDir:        viper.GetString("data_dir"),
		Calls:          -1,
		Overwrite:      prepareOverwrite,
		NoProgress:     prepareNoProgress,
		Verbose:        viper.GetBool("verbose"),
		Quiet:          prepareQuiet,
	}

	application, err := app.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return application.RunPrepare(context.Background())
}
