package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/withObsrvr/flight-pipeline-workflow/pkg/checkpoint"
	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// SaveDiagnostics writes the diagnostics of each batch as JSON lines.
type SaveDiagnostics struct {
	filePath   string
	processors []processor.Processor
	written    int
}

func NewSaveDiagnostics(config map[string]interface{}) (*SaveDiagnostics, error) {
	filePath, ok := config["file_path"].(string)
	if !ok || filePath == "" {
		return nil, fmt.Errorf("invalid configuration: missing 'file_path'")
	}
	return &SaveDiagnostics{filePath: filePath}, nil
}

func (s *SaveDiagnostics) Subscribe(p processor.Processor) {
	s.processors = append(s.processors, p)
}

func (s *SaveDiagnostics) Process(ctx context.Context, msg processor.Message) error {
	batch, err := processor.BatchFromMessage(msg)
	if err != nil {
		return fmt.Errorf("SaveDiagnostics: %w", err)
	}

	entries := batch.Diagnostics.Entries()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("SaveDiagnostics: error encoding diagnostic: %w", err)
		}
	}

	if err := checkpoint.WriteAtomic(s.filePath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("SaveDiagnostics: %w", err)
	}
	s.written += len(entries)
	log.Printf("SaveDiagnostics: wrote %d diagnostics to %s", len(entries), s.filePath)

	return processor.Forward(ctx, s.processors, msg)
}

func (s *SaveDiagnostics) Close() error {
	return nil
}
