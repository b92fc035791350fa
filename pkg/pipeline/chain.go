package pipeline

import (
	"log"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// BuildProcessorChain chains processors sequentially and subscribes all consumers to the last processor
func BuildProcessorChain(processors []processor.Processor, consumers []processor.Processor) {
	var lastProcessor processor.Processor

	for _, p := range processors {
		if lastProcessor != nil {
			lastProcessor.Subscribe(p)
			log.Printf("Chained processor %T -> %T", lastProcessor, p)
		}
		lastProcessor = p
	}

	if lastProcessor != nil {
		for _, c := range consumers {
			lastProcessor.Subscribe(c)
			log.Printf("Chained processor %T -> consumer %T", lastProcessor, c)
		}
	} else if len(consumers) > 0 {
		// Without processors the first consumer fans out to the rest.
		for i := 1; i < len(consumers); i++ {
			consumers[0].Subscribe(consumers[i])
			log.Printf("Chained consumer %T -> consumer %T", consumers[0], consumers[i])
		}
	}
}

// Entry returns the stage a source should feed: the first processor, or
// the first consumer when there are no processors.
func Entry(processors []processor.Processor, consumers []processor.Processor) processor.Processor {
	if len(processors) > 0 {
		return processors[0]
	}
	if len(consumers) > 0 {
		return consumers[0]
	}
	return nil
}
