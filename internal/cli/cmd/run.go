package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/flight-pipeline-workflow/internal/cli/runner"
	"github.com/withObsrvr/flight-pipeline-workflow/internal/cli/utils"
)

var (
	// factories is set by main.go during initialization
	factories runner.Factories

	dryRun bool

	runCmd = &cobra.Command{
		Use:   "run [config file]",
		Short: "Run a pipeline from configuration",
		Long:  "Execute every pipeline in the configuration file, in pipeline name order",
		Args:  cobra.ExactArgs(1),
		Example: `  flightctl run pipeline.yaml
  flightctl run examples/flights.yaml
  flightctl run --dry-run pipeline.yaml`,
		RunE: runPipeline,
	}
)

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate configuration without running the pipeline")
	rootCmd.AddCommand(runCmd)
}

// SetFactories sets the factory functions for creating pipeline components
func SetFactories(f runner.Factories) {
	factories = f
}

func runPipeline(cmd *cobra.Command, args []string) error {
	configFile := args[0]
	if err := utils.RequireFile("configuration file", configFile); err != nil {
		return err
	}

	r := runner.New(runner.Options{
		ConfigFile: configFile,
		Verbose:    verbose,
	}, factories)

	if dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("🔍 Validating pipeline configuration from %s", configFile))
		if err := r.Validate(); err != nil {
			return utils.FormatError("configuration validation failed", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✅ Configuration is valid"))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("🚀 Starting pipeline from %s", configFile))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := r.Run(ctx); err != nil {
		return utils.FormatError("pipeline failed", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✅ Pipeline completed successfully"))
	return nil
}
