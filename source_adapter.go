package main

import (
	"context"

	"github.com/withObsrvr/flight-pipeline-workflow/consumer"
	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

type Config struct {
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

type PipelineConfig struct {
	Name       string                      `yaml:"name"`
	Source     SourceConfig                `yaml:"source"`
	Processors []processor.ProcessorConfig `yaml:"processors"`
	Consumers  []consumer.ConsumerConfig   `yaml:"consumers"`
}

type SourceConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// SourceAdapter reads input and pushes it into the processor chain.
type SourceAdapter interface {
	Run(context.Context) error
	Subscribe(processor.Processor)
}
