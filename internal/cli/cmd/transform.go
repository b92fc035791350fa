package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	cliconfig "github.com/withObsrvr/flight-pipeline-workflow/internal/cli/config"
	"github.com/withObsrvr/flight-pipeline-workflow/internal/cli/runner"
	"github.com/withObsrvr/flight-pipeline-workflow/internal/cli/utils"
	v2config "github.com/withObsrvr/flight-pipeline-workflow/internal/config/v2"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform a flight NDJSON file into Parquet",
	Long:  "Read a flight NDJSON export, clean and derive every column, and write a typed Parquet file",
	Example: `  flightctl transform --input flights.json --output flights.parquet
  flightctl transform -i flights.json -o gs://my-bucket/flights.parquet --compression zstd
  flightctl transform -i flights.json --diagnostics diagnostics.jsonl`,
	Args: cobra.NoArgs,
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().StringP("input", "i", "", "Flight NDJSON file to read")
	transformCmd.Flags().StringP("output", "o", "", "Parquet file to write (default from default_output)")
	transformCmd.Flags().StringP("compression", "c", "", "Parquet compression codec (default from default_compression)")
	transformCmd.Flags().String("diagnostics", "", "Write diagnostics as JSON lines to this file")
	transformCmd.Flags().Bool("skip-malformed", false, "Skip lines that are not JSON objects instead of failing")
	transformCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	settings, err := cliconfig.Load()
	if err != nil {
		return utils.FormatError("loading CLI settings", err)
	}

	input, _ := cmd.Flags().GetString("input")
	if err := utils.RequireFile("input file", input); err != nil {
		return err
	}
	output := flagOr(cmd, "output", settings.DefaultOutput)
	compression := flagOr(cmd, "compression", settings.DefaultCompression)
	diagnostics := flagOr(cmd, "diagnostics", settings.DiagnosticsPath)
	skipMalformed, _ := cmd.Flags().GetBool("skip-malformed")

	result, err := loadTransformPipeline(transformPipeline(input, output, compression, diagnostics, skipMalformed, settings.QuietDiagnostics))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("🚀 Transforming %s → %s", input, output))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r := runner.New(runner.Options{Verbose: verbose}, factories)
	if err := r.RunLoaded(ctx, result); err != nil {
		return utils.FormatError("transform failed", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✅ Wrote %s", output))
	return nil
}

// transformPipeline builds the simplified pipeline configuration that the
// transform command runs.
func transformPipeline(input, output, compression, diagnostics string, skipMalformed, quiet bool) map[string]interface{} {
	saveTo := []interface{}{
		map[string]interface{}{
			"parquet": map[string]interface{}{
				"output_path": output,
				"compression": compression,
			},
		},
	}
	if diagnostics != "" {
		saveTo = append(saveTo, map[string]interface{}{"diagnostics": diagnostics})
	}

	return map[string]interface{}{
		"name": "transform",
		"source": map[string]interface{}{
			"ndjson": map[string]interface{}{
				"file_path":      input,
				"skip_malformed": skipMalformed,
			},
		},
		"process": map[string]interface{}{
			"flights": map[string]interface{}{
				"quiet_diagnostics": quiet,
			},
		},
		"save_to": saveTo,
	}
}

func loadTransformPipeline(data map[string]interface{}) (*v2config.LoadResult, error) {
	options := v2config.DefaultLoaderOptions()
	options.ExpandEnvVars = false
	loader, err := v2config.NewConfigLoader(options)
	if err != nil {
		return nil, utils.FormatError("creating config loader", err)
	}
	result, err := loader.LoadFromData(data)
	if err != nil {
		return nil, utils.FormatError("invalid transform options", err)
	}
	return result, nil
}

func flagOr(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		value, _ := cmd.Flags().GetString(name)
		return value
	}
	return fallback
}
