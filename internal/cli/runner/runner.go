package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/withObsrvr/flight-pipeline-workflow/consumer"
	v2config "github.com/withObsrvr/flight-pipeline-workflow/internal/config/v2"
	"github.com/withObsrvr/flight-pipeline-workflow/pkg/pipeline"
	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

type Options struct {
	ConfigFile string
	Verbose    bool
}

// Factory functions for creating pipeline components
type Factories struct {
	CreateSourceAdapter func(SourceConfig) (SourceAdapter, error)
	CreateProcessor     func(processor.ProcessorConfig) (processor.Processor, error)
	CreateConsumer      func(consumer.ConsumerConfig) (processor.Processor, error)
}

type Runner struct {
	opts      Options
	factories Factories
}

// Config structures - mirroring the main package
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

type SourceAdapter interface {
	Run(context.Context) error
	Subscribe(processor.Processor)
}

func New(opts Options, factories Factories) *Runner {
	return &Runner{
		opts:      opts,
		factories: factories,
	}
}

// Run loads the configuration file and runs every pipeline in name order.
// Pipelines are independent: a failed pipeline is logged and the rest
// still run, and the first failure is returned at the end.
func (r *Runner) Run(ctx context.Context) error {
	result, err := r.load()
	if err != nil {
		return err
	}
	return r.RunLoaded(ctx, result)
}

// RunLoaded runs the pipelines of an already loaded configuration.
func (r *Runner) RunLoaded(ctx context.Context, result *v2config.LoadResult) error {
	var firstErr error
	for _, name := range result.PipelineNames() {
		if err := ctx.Err(); err != nil {
			return err
		}

		pipelineConfig := ConvertV2Pipeline(name, result.Config.Pipelines[name])
		log.Printf("Starting pipeline: %s", name)
		start := time.Now()

		if err := r.RunPipeline(ctx, pipelineConfig); err != nil {
			log.Printf("Pipeline error: error in pipeline %s: %v", name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("pipeline %s: %w", name, err)
			}
			continue
		}
		log.Printf("Pipeline %s finished in %v", name, time.Since(start))
	}

	log.Printf("All pipelines finished.")
	return firstErr
}

// Validate loads the configuration and builds each pipeline's source and
// processors. Consumers are not constructed.
func (r *Runner) Validate() error {
	result, err := r.load()
	if err != nil {
		return err
	}

	for _, name := range result.PipelineNames() {
		pipelineConfig := ConvertV2Pipeline(name, result.Config.Pipelines[name])
		if _, _, err := r.buildStages(pipelineConfig); err != nil {
			return fmt.Errorf("pipeline %s: %w", name, err)
		}
	}
	return nil
}

func (r *Runner) load() (*v2config.LoadResult, error) {
	result, err := LoadConfigForInspection(r.opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	for _, warning := range result.Warnings {
		log.Printf("Warning: %s", warning)
	}
	if r.opts.Verbose {
		log.Printf("Loaded %s format configuration with %d pipeline(s)", result.Format, len(result.Config.Pipelines))
	}
	return result, nil
}

// RunPipeline builds one pipeline, runs its source to completion and
// closes every consumer.
func (r *Runner) RunPipeline(ctx context.Context, pipelineConfig PipelineConfig) error {
	source, processors, consumers, err := r.buildPipeline(pipelineConfig)
	if err != nil {
		closeConsumers(consumers)
		return err
	}

	pipeline.BuildProcessorChain(processors, consumers)
	if entry := pipeline.Entry(processors, consumers); entry != nil {
		source.Subscribe(entry)
	}

	err = source.Run(ctx)

	if r.opts.Verbose {
		log.Printf("Pipeline source completed, closing consumers...")
	}
	if closeErr := closeConsumers(consumers); err == nil {
		err = closeErr
	}
	return err
}

func (r *Runner) buildStages(pipelineConfig PipelineConfig) (SourceAdapter, []processor.Processor, error) {
	source, err := r.factories.CreateSourceAdapter(pipelineConfig.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating source: %w", err)
	}

	processors := make([]processor.Processor, len(pipelineConfig.Processors))
	for i, procConfig := range pipelineConfig.Processors {
		proc, err := r.factories.CreateProcessor(procConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating processor %s: %w", procConfig.Type, err)
		}
		processors[i] = proc
	}
	return source, processors, nil
}

func (r *Runner) buildPipeline(pipelineConfig PipelineConfig) (SourceAdapter, []processor.Processor, []processor.Processor, error) {
	source, processors, err := r.buildStages(pipelineConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	consumers := make([]processor.Processor, 0, len(pipelineConfig.Consumers))
	for _, consConfig := range pipelineConfig.Consumers {
		cons, err := r.factories.CreateConsumer(consConfig)
		if err != nil {
			return nil, nil, consumers, fmt.Errorf("error creating consumer %s: %w", consConfig.Type, err)
		}
		consumers = append(consumers, cons)
	}

	return source, processors, consumers, nil
}

// closeConsumers closes every consumer that holds resources and returns
// the first close error.
func closeConsumers(consumers []processor.Processor) error {
	var firstErr error
	for _, cons := range consumers {
		if closer, ok := cons.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Printf("Error closing consumer %T: %v", cons, err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}
