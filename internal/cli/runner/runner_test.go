package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/flight-pipeline-workflow/consumer"
	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

type fakeSource struct {
	path        string
	subscribers []processor.Processor
	err         error
}

func (s *fakeSource) Run(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	batch := processor.NewBatch(processor.Sequence{processor.NewRecord()}, s.path)
	return processor.Forward(ctx, s.subscribers, processor.Message{Payload: batch})
}

func (s *fakeSource) Subscribe(p processor.Processor) {
	s.subscribers = append(s.subscribers, p)
}

type fakeConsumer struct {
	name   string
	seen   *[]string
	closed bool
}

func (c *fakeConsumer) Process(ctx context.Context, msg processor.Message) error {
	batch, err := processor.BatchFromMessage(msg)
	if err != nil {
		return err
	}
	*c.seen = append(*c.seen, c.name+":"+batch.SourcePath)
	return nil
}

func (c *fakeConsumer) Subscribe(processor.Processor) {}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

type fakeFactories struct {
	seen      []string
	consumers []*fakeConsumer
	failOn    string
}

func (f *fakeFactories) factories() Factories {
	return Factories{
		CreateSourceAdapter: func(cfg SourceConfig) (SourceAdapter, error) {
			path, _ := cfg.Config["file_path"].(string)
			if path == f.failOn {
				return &fakeSource{path: path, err: errors.New("source exploded")}, nil
			}
			return &fakeSource{path: path}, nil
		},
		CreateProcessor: func(cfg processor.ProcessorConfig) (processor.Processor, error) {
			return processor.NewTransformFlights(map[string]interface{}{"quiet_diagnostics": true})
		},
		CreateConsumer: func(cfg consumer.ConsumerConfig) (processor.Processor, error) {
			c := &fakeConsumer{name: cfg.Type, seen: &f.seen}
			f.consumers = append(f.consumers, c)
			return c, nil
		},
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const twoPipelines = `pipelines:
  b_second:
    source:
      type: NDJSONFileSourceAdapter
      config: {file_path: second.json}
    consumers:
      - type: StdoutConsumer
  a_first:
    source:
      type: NDJSONFileSourceAdapter
      config: {file_path: first.json}
    processors:
      - type: TransformFlights
    consumers:
      - type: StdoutConsumer
      - type: SaveDiagnostics
        config: {file_path: diagnostics.jsonl}
`

func TestRunnerRunsPipelinesInNameOrder(t *testing.T) {
	f := &fakeFactories{}
	r := New(Options{ConfigFile: writeConfig(t, twoPipelines)}, f.factories())

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{
		"StdoutConsumer:first.json",
		"SaveDiagnostics:first.json",
		"StdoutConsumer:second.json",
	}, f.seen)

	require.Len(t, f.consumers, 3)
	for _, c := range f.consumers {
		assert.True(t, c.closed, "%s should be closed", c.name)
	}
}

func TestRunnerContinuesAfterFailedPipeline(t *testing.T) {
	f := &fakeFactories{failOn: "first.json"}
	r := New(Options{ConfigFile: writeConfig(t, twoPipelines)}, f.factories())

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline a_first")
	assert.Contains(t, err.Error(), "source exploded")
	assert.Equal(t, []string{"StdoutConsumer:second.json"}, f.seen)
	for _, c := range f.consumers {
		assert.True(t, c.closed)
	}
}

func TestRunnerSimplifiedConfig(t *testing.T) {
	f := &fakeFactories{}
	config := writeConfig(t, `source:
  ndjson: flights.json
process: flights
save_to: stdout
`)
	r := New(Options{ConfigFile: config, Verbose: true}, f.factories())

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"StdoutConsumer:flights.json"}, f.seen)
}

func TestRunnerValidate(t *testing.T) {
	f := &fakeFactories{}
	r := New(Options{ConfigFile: writeConfig(t, twoPipelines)}, f.factories())
	require.NoError(t, r.Validate())
	assert.Empty(t, f.consumers, "validation must not construct consumers")

	bad := New(Options{ConfigFile: writeConfig(t, "save_to: parquett\nsource: {ndjson: a.json}\n")}, f.factories())
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Did you mean 'parquet'?")
}

func TestRunnerCancelledContext(t *testing.T) {
	f := &fakeFactories{}
	r := New(Options{ConfigFile: writeConfig(t, twoPipelines)}, f.factories())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.Empty(t, f.seen)
}

func TestDetectConfigFormat(t *testing.T) {
	format, err := DetectConfigFormat(writeConfig(t, twoPipelines))
	require.NoError(t, err)
	assert.Equal(t, "legacy", format.String())

	_, err = DetectConfigFormat(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
