package main

import (
	"fmt"

	"github.com/withObsrvr/flight-pipeline-workflow/consumer"
	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// Factory functions exported for use by the CLI runner

func CreateSourceAdapterFunc(sourceConfig SourceConfig) (SourceAdapter, error) {
	switch sourceConfig.Type {
	case "NDJSONFileSourceAdapter":
		return NewNDJSONFileSourceAdapter(sourceConfig.Config)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceConfig.Type)
	}
}

func CreateProcessorFunc(processorConfig processor.ProcessorConfig) (processor.Processor, error) {
	switch processorConfig.Type {
	case "TransformFlights":
		return processor.NewTransformFlights(processorConfig.Config)
	default:
		return nil, fmt.Errorf("unsupported processor type: %s", processorConfig.Type)
	}
}

func CreateConsumerFunc(consumerConfig consumer.ConsumerConfig) (processor.Processor, error) {
	switch consumerConfig.Type {
	case "SaveToParquet":
		return consumer.NewSaveToParquet(consumerConfig.Config)
	case "SaveToDuckDB":
		return consumer.NewSaveToDuckDB(consumerConfig.Config)
	case "SaveToSQLite":
		return consumer.NewSaveToSQLite(consumerConfig.Config)
	case "SaveToPostgreSQL":
		return consumer.NewSaveToPostgreSQL(consumerConfig.Config)
	case "SaveToExcel":
		return consumer.NewSaveToExcel(consumerConfig.Config)
	case "StdoutConsumer":
		return consumer.NewStdoutConsumer(consumerConfig.Config), nil
	case "SaveDiagnostics":
		return consumer.NewSaveDiagnostics(consumerConfig.Config)
	default:
		return nil, fmt.Errorf("unsupported consumer type: %s", consumerConfig.Type)
	}
}
