package consumer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// StdoutConsumer writes one JSON object per typed flight row.
type StdoutConsumer struct {
	out        io.Writer
	limit      int
	processors []processor.Processor
}

// NewStdoutConsumer creates a new StdoutConsumer instance. A positive
// limit caps the rows printed per batch.
func NewStdoutConsumer(config map[string]interface{}) *StdoutConsumer {
	c := &StdoutConsumer{out: os.Stdout}
	if n, ok := intConfig(config, "limit"); ok && n > 0 {
		c.limit = n
	}
	return c
}

// SetOutput redirects output, mainly for tests.
func (s *StdoutConsumer) SetOutput(w io.Writer) {
	s.out = w
}

func (s *StdoutConsumer) Process(ctx context.Context, msg processor.Message) error {
	batch, err := processor.BatchFromMessage(msg)
	if err != nil {
		return fmt.Errorf("StdoutConsumer: %w", err)
	}
	table, err := BuildFlightTable(batch.Records)
	if err != nil {
		return fmt.Errorf("StdoutConsumer: failed to build table: %w", err)
	}

	w := bufio.NewWriter(s.out)
	enc := json.NewEncoder(w)
	n := table.NumRows()
	if s.limit > 0 && n > s.limit {
		n = s.limit
	}
	for i := 0; i < n; i++ {
		if err := enc.Encode(table.Row(i)); err != nil {
			return fmt.Errorf("StdoutConsumer: error marshaling row %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	return processor.Forward(ctx, s.processors, msg)
}

func (s *StdoutConsumer) Subscribe(proc processor.Processor) {
	s.processors = append(s.processors, proc)
}
