package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

type capturingProcessor struct {
	batches []*processor.Batch
}

func (c *capturingProcessor) Process(ctx context.Context, msg processor.Message) error {
	batch, err := processor.BatchFromMessage(msg)
	if err != nil {
		return err
	}
	c.batches = append(c.batches, batch)
	return nil
}

func (c *capturingProcessor) Subscribe(processor.Processor) {}

func writeNDJSON(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flights.json")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func runNDJSON(t *testing.T, config map[string]interface{}) (*capturingProcessor, error) {
	t.Helper()
	adapter, err := NewNDJSONFileSourceAdapter(config)
	require.NoError(t, err)
	sink := &capturingProcessor{}
	adapter.Subscribe(sink)
	return sink, adapter.Run(context.Background())
}

func TestNewNDJSONFileSourceAdapter(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantErr string
	}{
		{name: "valid", config: map[string]interface{}{"file_path": "flights.json"}},
		{name: "missing path", config: map[string]interface{}{}, wantErr: "file_path must be specified"},
		{name: "empty path", config: map[string]interface{}{"file_path": ""}, wantErr: "file_path must be specified"},
		{
			name:    "bad line limit",
			config:  map[string]interface{}{"file_path": "flights.json", "max_line_bytes": 0},
			wantErr: "max_line_bytes must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNDJSONFileSourceAdapter(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNDJSONFileSourceAdapterReadsRecordsInOrder(t *testing.T) {
	path := writeNDJSON(t,
		`{"FL_DATE":"2015-01-01","DEP_TIME":8.45,"DEP_DELAY":-3,"CANCELLED":false,"TAIL":null}`,
		``,
		`{"FL_DATE":"2015-01-02","DEP_TIME":1e1,"DEP_DELAY":7,"ROUTE":{"from":"JFK"}}`,
	)

	sink, err := runNDJSON(t, map[string]interface{}{"file_path": path})
	require.NoError(t, err)
	require.Len(t, sink.batches, 1)

	batch := sink.batches[0]
	assert.Equal(t, path, batch.SourcePath)
	require.Len(t, batch.Records, 2, "blank lines are ignored")

	first := batch.Records[0]
	assert.Equal(t, []string{"FL_DATE", "DEP_TIME", "DEP_DELAY", "CANCELLED", "TAIL"}, first.Keys())
	assert.True(t, first.Value("FL_DATE").Equal(processor.StringValue("2015-01-01")))
	assert.True(t, first.Value("DEP_TIME").Equal(processor.FloatValue(8.45)))
	assert.True(t, first.Value("DEP_DELAY").Equal(processor.IntValue(-3)))
	assert.True(t, first.Value("CANCELLED").Equal(processor.BoolValue(false)))
	tail, ok := first.Get("TAIL")
	assert.True(t, ok)
	assert.True(t, tail.IsNull())

	second := batch.Records[1]
	assert.Equal(t, processor.KindFloat, second.Value("DEP_TIME").Kind(), "exponent numbers are floats")
	assert.True(t, second.Value("ROUTE").Equal(processor.StringValue(`{"from":"JFK"}`)))
}

func TestNDJSONFileSourceAdapterMalformedLine(t *testing.T) {
	path := writeNDJSON(t,
		`{"FL_DATE":"2015-01-01"}`,
		`{"FL_DATE":`,
		`[1,2,3]`,
		`{"FL_DATE":"2015-01-03"}`,
	)

	_, err := runNDJSON(t, map[string]interface{}{"file_path": path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	sink, err := runNDJSON(t, map[string]interface{}{"file_path": path, "skip_malformed": true})
	require.NoError(t, err)
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0].Records, 2)
}

func TestNDJSONFileSourceAdapterRejectsNonObject(t *testing.T) {
	path := writeNDJSON(t, `"just a string"`)

	_, err := runNDJSON(t, map[string]interface{}{"file_path": path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a JSON object")
	assert.Contains(t, err.Error(), "line 1")
}

func TestNDJSONFileSourceAdapterLineTooLong(t *testing.T) {
	path := writeNDJSON(t, `{"FL_DATE":"2015-01-01","NOTE":"`+strings.Repeat("x", 256)+`"}`)

	_, err := runNDJSON(t, map[string]interface{}{"file_path": path, "max_line_bytes": 64})
	assert.Error(t, err)
}

func TestNDJSONFileSourceAdapterMissingFile(t *testing.T) {
	_, err := runNDJSON(t, map[string]interface{}{"file_path": filepath.Join(t.TempDir(), "nope.json")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open")
}

func TestNDJSONFileSourceAdapterCancelled(t *testing.T) {
	path := writeNDJSON(t, `{"FL_DATE":"2015-01-01"}`)
	adapter, err := NewNDJSONFileSourceAdapter(map[string]interface{}{"file_path": path})
	require.NoError(t, err)
	sink := &capturingProcessor{}
	adapter.Subscribe(sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, adapter.Run(ctx), context.Canceled)
	assert.Empty(t, sink.batches)
}
