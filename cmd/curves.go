package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/genre-classifier/internal/app"
)

var (
	// Curves command flags
	curvesExperiment string
	curvesOutputFile string
	curvesQuiet      bool
)

// curvesCmd represents the curves command
var curvesCmd = &cobra.Command{
	Use:   "curves [flags]",
	Short: "Render training curves from a stored snapshot",
	Long: `Render the accuracy and loss curves from the snapshot stored for
the current configuration.

The snapshot accumulates per-epoch history across every fit call, so
the curves cover the whole training run to date. Both images are
written to the configured image directory, named by the configuration
identity.

Examples:
  # Render curves for the current configuration
  genre-classifier curves

  # Render curves for a specific experiment
  genre-classifier curves --experiment long-run.yaml`,
	RunE: runCurves,
}

func init() {
	rootCmd.AddCommand(curvesCmd)

	curvesCmd.Flags().StringVarP(&curvesExperiment, "experiment", "e", "",
		"experiment configuration file (yaml or json)")
	curvesCmd.Flags().StringVar(&curvesOutputFile, "output-file", "",
		"write the run summary to a file instead of stdout")
	curvesCmd.Flags().BoolVarP(&curvesQuiet, "quiet", "q", false,
		"suppress the run summary on stdout")
}

// runCurves executes the curves command
func runCurves(cmd *cobra.Command, args []string) error {
	ctx := &app.Context{
		ConfigFile:     configFile,
		ExperimentFile: curvesExperiment,
		OutputFile:     curvesOutputFile,
		OutputFormat:   viper.GetString("output_format"),
		DataDir:        viper.GetString("data_dir"),
		Calls:          -1,
		Verbose:        viper.GetBool("verbose"),
		Quiet:          curvesQuiet,
	}

	application, err := app.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return application.RunCurves(context.Background())
}
