package runner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/withObsrvr/flight-pipeline-workflow/consumer"
	v2config "github.com/withObsrvr/flight-pipeline-workflow/internal/config/v2"
	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// ConvertV2Pipeline converts a loaded pipeline to the runner's format
func ConvertV2Pipeline(name string, pipeline v2config.TransformedPipeline) PipelineConfig {
	config := PipelineConfig{
		Name: name,
		Source: SourceConfig{
			Type:   pipeline.Source.Type,
			Config: pipeline.Source.Config,
		},
	}

	for _, proc := range pipeline.Processors {
		config.Processors = append(config.Processors, processor.ProcessorConfig{
			Type:   proc.Type,
			Config: proc.Config,
		})
	}

	for _, cons := range pipeline.Consumers {
		config.Consumers = append(config.Consumers, consumer.ConsumerConfig{
			Type:   cons.Type,
			Config: cons.Config,
		})
	}

	return config
}

// LoadConfigForInspection loads a config file for inspection without running it
func LoadConfigForInspection(configFile string) (*v2config.LoadResult, error) {
	loader, err := v2config.NewConfigLoader(v2config.DefaultLoaderOptions())
	if err != nil {
		return nil, fmt.Errorf("creating config loader: %w", err)
	}

	return loader.Load(configFile)
}

// DetectConfigFormat detects whether a config file is legacy or v2 format
func DetectConfigFormat(configFile string) (v2config.FormatVersion, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return v2config.FormatUnknown, fmt.Errorf("reading config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return v2config.FormatUnknown, fmt.Errorf("parsing YAML: %w", err)
	}

	return v2config.DetectFormat(raw), nil
}
