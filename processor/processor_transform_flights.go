package processor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// TransformFlights runs the flight derivations over a batch and forwards
// the batch to its subscribers.
type TransformFlights struct {
	subscribers []Processor
	debug       bool
	quiet       bool

	mu    sync.RWMutex
	stats struct {
		ProcessedBatches uint64
		ProcessedRecords uint64
		Diagnostics      uint64
		LastProcessTime  time.Time
	}
}

// NewTransformFlights creates the processor from its pipeline config.
// Recognised keys: debug (per-step timing logs) and quiet_diagnostics
// (do not log each diagnostic as it is recorded).
func NewTransformFlights(config map[string]interface{}) (*TransformFlights, error) {
	p := &TransformFlights{
		subscribers: make([]Processor, 0),
	}
	if config == nil {
		return p, nil
	}
	if val, ok := config["debug"].(bool); ok {
		p.debug = val
	}
	if val, ok := config["quiet_diagnostics"].(bool); ok {
		p.quiet = val
	}
	return p, nil
}

func (p *TransformFlights) Subscribe(processor Processor) {
	p.subscribers = append(p.subscribers, processor)
}

func (p *TransformFlights) Process(ctx context.Context, msg Message) error {
	batch, err := BatchFromMessage(msg)
	if err != nil {
		return fmt.Errorf("TransformFlights: %w", err)
	}

	before := batch.Diagnostics.Len()
	batch.Diagnostics.SetQuiet(p.quiet)

	t := NewTransformer(batch.Diagnostics)
	t.SetDebug(p.debug)
	if err := t.Run(ctx, batch.Records); err != nil {
		return fmt.Errorf("TransformFlights: %w", err)
	}

	added := batch.Diagnostics.Len() - before
	log.Printf("TransformFlights: transformed %d records with %d diagnostics", len(batch.Records), added)

	p.mu.Lock()
	p.stats.ProcessedBatches++
	p.stats.ProcessedRecords += uint64(len(batch.Records))
	p.stats.Diagnostics += uint64(added)
	p.stats.LastProcessTime = time.Now()
	p.mu.Unlock()

	metadata := make(map[string]interface{}, len(msg.Metadata)+1)
	for k, v := range msg.Metadata {
		metadata[k] = v
	}
	metadata["transformed"] = true

	return Forward(ctx, p.subscribers, Message{Payload: batch, Metadata: metadata})
}

func (p *TransformFlights) GetStats() struct {
	ProcessedBatches uint64
	ProcessedRecords uint64
	Diagnostics      uint64
	LastProcessTime  time.Time
} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}
