package cmd

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/withObsrvr/flight-pipeline-workflow/internal/cli/utils"
	v2config "github.com/withObsrvr/flight-pipeline-workflow/internal/config/v2"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for validating, explaining, and upgrading pipeline configurations.`,
}

var validateCmd = &cobra.Command{
	Use:   "validate [config file]",
	Short: "Validate a configuration file",
	Long:  `Validate a pipeline configuration file and report any errors or warnings.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := args[0]
		if err := utils.RequireFile("config file", configFile); err != nil {
			return err
		}

		loader, err := v2config.NewConfigLoader(v2config.DefaultLoaderOptions())
		if err != nil {
			return utils.FormatError("creating config loader", err)
		}

		result, err := loader.ValidateFile(configFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.HasErrors() {
			color.New(color.FgRed).Fprintln(out, "❌ Configuration has errors:")
			for _, err := range result.Errors {
				fmt.Fprintf(out, "  • %v\n", err)
			}
			return fmt.Errorf("configuration validation failed")
		}

		if len(result.Warnings) > 0 {
			color.New(color.FgYellow).Fprintln(out, "⚠️  Configuration has warnings:")
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "  • %s\n", warning)
			}
		}

		color.New(color.FgGreen).Fprintln(out, "✅ Configuration is valid!")
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain [config file]",
	Short: "Explain what a configuration does",
	Long:  `Describe each pipeline of a configuration: its components, their aliases, and the defaults they receive.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := args[0]
		if err := utils.RequireFile("config file", configFile); err != nil {
			return err
		}

		loader, err := v2config.NewConfigLoader(v2config.DefaultLoaderOptions())
		if err != nil {
			return utils.FormatError("creating config loader", err)
		}

		explanation, err := loader.ExplainConfig(configFile)
		if err != nil {
			return utils.FormatError("explaining config", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "📄 Configuration Format: %s\n\n", explanation.Format)

		names := make([]string, 0, len(explanation.Pipelines))
		for name := range explanation.Pipelines {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			pipeline := explanation.Pipelines[name]
			color.New(color.FgCyan).Fprintf(out, "Pipeline: %s\n", name)
			fmt.Fprintln(out, strings.Repeat("─", 40))

			if pipeline.Source.Type != "" {
				fmt.Fprintf(out, "\n📥 Source: %s\n", pipeline.Source.Type)
				printComponent(out, "   ", pipeline.Source)
			}

			if len(pipeline.Processors) > 0 {
				fmt.Fprintf(out, "\n⚙️  Processors (%d):\n", len(pipeline.Processors))
				for i, proc := range pipeline.Processors {
					fmt.Fprintf(out, "   %d. %s\n", i+1, proc.Type)
					printComponent(out, "      ", proc)
				}
			}

			if len(pipeline.Consumers) > 0 {
				fmt.Fprintf(out, "\n💾 Consumers (%d):\n", len(pipeline.Consumers))
				for i, cons := range pipeline.Consumers {
					fmt.Fprintf(out, "   %d. %s\n", i+1, cons.Type)
					printComponent(out, "      ", cons)
				}
			}

			fmt.Fprintln(out)
		}

		return nil
	},
}

func printComponent(out io.Writer, indent string, c v2config.ComponentExplanation) {
	fmt.Fprintf(out, "%sDescription: %s\n", indent, c.Description)
	if len(c.Aliases) > 0 {
		fmt.Fprintf(out, "%sAliases: %s\n", indent, strings.Join(c.Aliases, ", "))
	}

	keys := make([]string, 0, len(c.Defaults))
	for key := range c.Defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		info := c.Defaults[key]
		if info.IsDefault {
			fmt.Fprintf(out, "%s%s: %v (default)\n", indent, key, info.Value)
		} else {
			fmt.Fprintf(out, "%s%s: %v (default %v)\n", indent, key, info.Value, info.DefaultValue)
		}
	}
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [config file]",
	Short: "Upgrade a legacy configuration to simplified v2 format",
	Long:  `Convert a legacy configuration file to the simplified v2 format, dropping values that match the defaults.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := args[0]
		preview, _ := cmd.Flags().GetBool("dry-run")
		output, _ := cmd.Flags().GetString("output")

		if err := utils.RequireFile("config file", configFile); err != nil {
			return err
		}

		loader, err := v2config.NewConfigLoader(v2config.DefaultLoaderOptions())
		if err != nil {
			return utils.FormatError("creating config loader", err)
		}
		result, err := loader.Load(configFile)
		if err != nil {
			return utils.FormatError("loading config", err)
		}

		out := cmd.OutOrStdout()
		if result.Format == v2config.FormatV2 {
			color.New(color.FgYellow).Fprintln(out, "ℹ️  Configuration is already in v2 format")
			return nil
		}

		upgraded, err := convertToV2Format(result.Config)
		if err != nil {
			return err
		}
		yamlData, err := yaml.Marshal(upgraded)
		if err != nil {
			return utils.FormatError("marshaling v2 config", err)
		}
		v2Yaml := fmt.Sprintf("# Simplified v2 configuration\n# Generated by: flightctl config upgrade\n# Original file: %s\n\n%s", configFile, yamlData)

		if preview {
			fmt.Fprintln(out, "🔍 Preview of upgraded configuration:")
			fmt.Fprintln(out, strings.Repeat("─", 60))
			fmt.Fprint(out, v2Yaml)
			fmt.Fprintln(out, strings.Repeat("─", 60))
			fmt.Fprintln(out, "Run without --dry-run to save the upgraded configuration")
			return nil
		}

		if output == "" {
			output = strings.TrimSuffix(configFile, ".yaml") + ".v2.yaml"
		}
		if output == configFile {
			backup := configFile + ".backup"
			if err := copyFile(configFile, backup); err != nil {
				return utils.FormatError("creating backup", err)
			}
			color.New(color.FgGreen).Fprintf(out, "✅ Backup saved to: %s\n", backup)
		}

		if err := os.WriteFile(output, []byte(v2Yaml), 0644); err != nil {
			return utils.FormatError("writing upgraded config", err)
		}
		color.New(color.FgGreen).Fprintln(out, "✅ Configuration upgraded successfully!")
		fmt.Fprintf(out, "   Output: %s\n", output)
		return nil
	},
}

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Show configuration examples",
	Long:  `Display examples of both legacy and v2 simplified configurations.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "📚 Configuration Examples")
		fmt.Fprintln(out)

		color.New(color.FgCyan).Fprintln(out, "Legacy Configuration:")
		fmt.Fprintln(out, strings.Repeat("─", 60))
		fmt.Fprintln(out, v2config.GetLegacyExample())

		fmt.Fprintln(out)
		color.New(color.FgCyan).Fprintln(out, "Simplified v2 Configuration:")
		fmt.Fprintln(out, strings.Repeat("─", 60))
		fmt.Fprintln(out, v2config.GetSimplifiedExample())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(explainCmd)
	configCmd.AddCommand(upgradeCmd)
	configCmd.AddCommand(examplesCmd)

	upgradeCmd.Flags().BoolP("dry-run", "d", false, "Preview the upgraded configuration without saving")
	upgradeCmd.Flags().StringP("output", "o", "", "Output file (default: input.v2.yaml)")
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0644)
}

// convertToV2Format converts a loaded configuration to v2 format. A single
// pipeline becomes a top-level simplified config.
func convertToV2Format(config *v2config.TransformedConfig) (map[string]interface{}, error) {
	resolver, err := v2config.NewAliasResolver()
	if err != nil {
		return nil, err
	}
	upgrader := &configUpgrader{resolver: resolver, defaults: v2config.NewDefaultsEngine()}

	if len(config.Pipelines) == 1 {
		for name, pipeline := range config.Pipelines {
			simplified := upgrader.pipeline(pipeline)
			if name != v2config.DefaultPipelineName {
				simplified["name"] = name
			}
			return simplified, nil
		}
	}

	pipelines := make(map[string]interface{}, len(config.Pipelines))
	for name, pipeline := range config.Pipelines {
		pipelines[name] = upgrader.pipeline(pipeline)
	}
	return map[string]interface{}{"pipelines": pipelines}, nil
}

type configUpgrader struct {
	resolver *v2config.AliasResolver
	defaults *v2config.DefaultsEngine
}

func (u *configUpgrader) pipeline(pipeline v2config.TransformedPipeline) map[string]interface{} {
	result := make(map[string]interface{})

	if pipeline.Source.Type != "" {
		result["source"] = u.component(pipeline.Source, u.resolver.GetAllSourceAliases(pipeline.Source.Type))
	}

	var processors []interface{}
	for _, proc := range pipeline.Processors {
		processors = append(processors, u.component(proc, u.resolver.GetAllProcessorAliases(proc.Type)))
	}
	switch len(processors) {
	case 0:
	case 1:
		result["process"] = processors[0]
	default:
		result["process"] = processors
	}

	var consumers []interface{}
	for _, cons := range pipeline.Consumers {
		consumers = append(consumers, u.component(cons, u.resolver.GetAllConsumerAliases(cons.Type)))
	}
	switch len(consumers) {
	case 0:
	case 1:
		result["save_to"] = consumers[0]
	default:
		result["save_to"] = consumers
	}

	return result
}

var preferredAliases = map[string]string{
	"NDJSONFileSourceAdapter": "ndjson",
	"TransformFlights":        "flights",
	"SaveToParquet":           "parquet",
	"SaveToDuckDB":            "duckdb",
	"SaveToSQLite":            "sqlite",
	"SaveToPostgreSQL":        "postgres",
	"SaveToExcel":             "excel",
	"StdoutConsumer":          "stdout",
	"SaveDiagnostics":         "diagnostics",
}

// component renders one component under its preferred alias (or the
// shortest one), keyed to the config values that differ from the defaults.
func (u *configUpgrader) component(c v2config.TransformedComponent, aliases []string) interface{} {
	name, ok := preferredAliases[c.Type]
	if !ok {
		name = c.Type
		for _, alias := range aliases {
			if len(alias) < len(name) {
				name = alias
			}
		}
	}

	defaults := u.defaults.GetDefaultsForComponent(c.Type)
	clean := make(map[string]interface{})
	for key, value := range c.Config {
		if def, ok := defaults[key]; ok && reflect.DeepEqual(def, value) {
			continue
		}
		clean[key] = value
	}

	if len(clean) == 0 {
		return name
	}
	return map[string]interface{}{name: clean}
}
