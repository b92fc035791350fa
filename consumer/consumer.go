package consumer

import (
	"context"
	"io"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// Consumer is the terminal stage of a pipeline.
type Consumer interface {
	Process(context.Context, processor.Message) error
	Subscribe(processor.Processor)
}

// ClosableConsumer is a consumer that holds resources until Close.
type ClosableConsumer interface {
	Consumer
	io.Closer
}

type ConsumerConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}
