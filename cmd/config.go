package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/genre-classifier/configs"
	"github.com/RyanBlaney/genre-classifier/internal/app"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage configuration",
	Long: `Inspect and manage configuration.

The application configuration (paths, defaults, model settings) comes
from genre-classifier.yaml, environment variables and flags. On top of
that, experiment files override the run parameters for a single
invocation and determine the configuration identity used for caching.`,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective application configuration",
	Long: `Show the effective application configuration after merging the
config file, environment variables and flags.`,
	RunE: runConfigShow,
}

// configExampleCmd represents the config example command
var configExampleCmd = &cobra.Command{
	Use:   "example [path]",
	Short: "Write an example experiment configuration",
	Long: `Write an example experiment configuration file with the reference
parameters. Edit it and pass it to train, samples or predict with
--experiment.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigExample,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate an experiment configuration file",
	Long: `Validate an experiment configuration file. The file is merged over
the defaults exactly as a run would merge it, then checked, and the
resulting feature shape and configuration identity are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configExampleCmd)
	configCmd.AddCommand(configValidateCmd)
}

// runConfigShow executes the config show command
func runConfigShow(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := configs.ValidateConfig(config); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Configuration has issues: %v\n\n", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	fmt.Print(string(data))
	return nil
}

// runConfigExample executes the config example command
func runConfigExample(cmd *cobra.Command, args []string) error {
	path := "experiment.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	return app.GenerateExampleConfig(path)
}

// runConfigValidate executes the config validate command
func runConfigValidate(cmd *cobra.Command, args []string) error {
	return app.ValidateExperimentFile(args[0])
}
