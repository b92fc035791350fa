package processor

import (
	"context"
	"fmt"
)

// Processor defines the interface for processing messages.
type Processor interface {
	Process(context.Context, Message) error
	Subscribe(Processor)
}

type ProcessorConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// Message encapsulates the payload to be processed with optional metadata.
type Message struct {
	Payload  interface{}            `json:"payload"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Batch is the payload passed between pipeline stages: the full record
// sequence of a run together with its diagnostics.
type Batch struct {
	Records     Sequence
	Diagnostics *Diagnostics
	SourcePath  string
}

// NewBatch wraps records with a fresh diagnostics sink.
func NewBatch(records Sequence, sourcePath string) *Batch {
	return &Batch{
		Records:     records,
		Diagnostics: NewDiagnostics(),
		SourcePath:  sourcePath,
	}
}

// BatchFromMessage extracts the batch payload from msg.
func BatchFromMessage(msg Message) (*Batch, error) {
	switch p := msg.Payload.(type) {
	case *Batch:
		if p == nil {
			return nil, fmt.Errorf("nil batch payload")
		}
		if p.Diagnostics == nil {
			p.Diagnostics = NewDiagnostics()
		}
		return p, nil
	case Sequence:
		return NewBatch(p, ""), nil
	default:
		return nil, fmt.Errorf("expected *processor.Batch, got %T", msg.Payload)
	}
}

// Forward sends msg to every subscriber, stopping at the first error.
func Forward(ctx context.Context, subscribers []Processor, msg Message) error {
	for _, subscriber := range subscribers {
		if err := subscriber.Process(ctx, msg); err != nil {
			return fmt.Errorf("error in subscriber processing: %w", err)
		}
	}
	return nil
}
