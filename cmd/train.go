package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/genre-classifier/internal/app"
)

var (
	// Train command flags
	trainExperiment string
	trainCalls      int
	trainCount      int
	trainSeed       int64
	trainOutputFile string
	trainNoProgress bool
	trainQuiet      bool
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train [flags]",
	Short: "Train the genre classifier over repeated fit calls",
	Long: `Train the genre classifier over repeated fit calls.

Sample sets are built once per configuration and cached in the
snapshot store, keyed by the configuration identity, so repeated runs
with the same settings skip straight to training. Every fit call saves
a model checkpoint and refreshes the snapshot, and with checkpoints
enabled a later run continues from the stored model.

Setting --calls to 0 trains until interrupted; Ctrl-C stops cleanly
after the current call.

Examples:
  # Train with the configured call count
  genre-classifier train

  # Train until interrupted, resuming from checkpoints
  genre-classifier train --calls 0 --experiment long-run.yaml

  # One quick call over a reduced sample set
  genre-classifier train --calls 1 --count 5000`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVarP(&trainExperiment, "experiment", "e", "",
		"experiment configuration file (yaml or json)")
	trainCmd.Flags().IntVarP(&trainCalls, "calls", "c", -1,
		"number of fit calls (0 = until interrupted, -1 = use configuration)")
	trainCmd.Flags().IntVarP(&trainCount, "count", "n", 0,
		"number of training samples to build (0 = resolved maximum)")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 0,
		"sampler seed (0 = time-seeded)")
	trainCmd.Flags().StringVar(&trainOutputFile, "output-file", "",
		"write the run summary to a file instead of stdout")
	trainCmd.Flags().BoolVar(&trainNoProgress, "no-progress", false,
		"disable the sample build progress bar")
	trainCmd.Flags().BoolVarP(&trainQuiet, "quiet", "q", false,
		"suppress the run summary on stdout")
}

// runTrain executes the train command
func runTrain(cmd *cobra.Command, args []string) error {
	ctx := &app.Context{
		ConfigFile:     configFile,
		ExperimentFile: trainExperiment,
		OutputFile:     trainOutputFile,
		OutputFormat:   viper.GetString("output_format"),
		DataDir:        viper.GetString("data_dir"),
		Count:          trainCount,
		Calls:          trainCalls,
		Seed:           trainSeed,
		NoProgress:     trainNoProgress,
		Verbose:        viper.GetBool("verbose"),
		Quiet:          trainQuiet,
	}

	application, err := app.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Stop cleanly after the current fit call on interrupt
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.RunTrain(runCtx)
}
