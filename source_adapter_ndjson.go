package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

const defaultMaxLineBytes = 16 * 1024 * 1024

// NDJSONFileSourceAdapter reads a newline-delimited JSON file, one flight
// object per line, and emits the whole file as a single batch.
type NDJSONFileSourceAdapter struct {
	config     NDJSONFileConfig
	processors []processor.Processor
	stats      struct {
		linesRead      int64
		recordsEmitted int64
		linesSkipped   int64
	}
}

type NDJSONFileConfig struct {
	FilePath      string
	SkipMalformed bool
	MaxLineBytes  int
}

func NewNDJSONFileSourceAdapter(config map[string]interface{}) (SourceAdapter, error) {
	getIntValue := func(v interface{}) (int, bool) {
		switch i := v.(type) {
		case int:
			return i, true
		case float64:
			return int(i), true
		case int64:
			return int(i), true
		}
		return 0, false
	}

	var cfg NDJSONFileConfig

	filePath, ok := config["file_path"].(string)
	if !ok || filePath == "" {
		return nil, errors.New("file_path must be specified")
	}
	if strings.HasPrefix(filePath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve home directory")
		}
		filePath = strings.Replace(filePath, "~", home, 1)
	}
	cfg.FilePath = filePath

	if skip, ok := config["skip_malformed"].(bool); ok {
		cfg.SkipMalformed = skip
	}

	cfg.MaxLineBytes = defaultMaxLineBytes
	if n, ok := getIntValue(config["max_line_bytes"]); ok {
		if n <= 0 {
			return nil, errors.New("max_line_bytes must be positive")
		}
		cfg.MaxLineBytes = n
	}

	return &NDJSONFileSourceAdapter{config: cfg}, nil
}

func (adapter *NDJSONFileSourceAdapter) Subscribe(receiver processor.Processor) {
	adapter.processors = append(adapter.processors, receiver)
}

func (adapter *NDJSONFileSourceAdapter) Run(ctx context.Context) error {
	start := time.Now()
	f, err := os.Open(adapter.config.FilePath)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", adapter.config.FilePath)
	}
	defer f.Close()

	records, err := adapter.readRecords(ctx, f)
	if err != nil {
		return err
	}

	log.Printf("NDJSONFileSourceAdapter: read %d records from %s (%d lines, %d skipped) in %v",
		adapter.stats.recordsEmitted, adapter.config.FilePath,
		adapter.stats.linesRead, adapter.stats.linesSkipped, time.Since(start))

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := processor.Message{
		Payload: processor.NewBatch(records, adapter.config.FilePath),
		Metadata: map[string]interface{}{
			"source":      "ndjson",
			"source_path": adapter.config.FilePath,
			"records":     len(records),
		},
	}
	for _, proc := range adapter.processors {
		if err := proc.Process(ctx, msg); err != nil {
			return errors.Wrapf(err, "error processing batch from %s", adapter.config.FilePath)
		}
	}
	return nil
}

func (adapter *NDJSONFileSourceAdapter) readRecords(ctx context.Context, r io.Reader) (processor.Sequence, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), adapter.config.MaxLineBytes)

	var records processor.Sequence
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		adapter.stats.linesRead++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		rec, err := parseRecordLine(line)
		if err != nil {
			if adapter.config.SkipMalformed {
				adapter.stats.linesSkipped++
				log.Printf("NDJSONFileSourceAdapter: skipping line %d: %v", lineNo, err)
				continue
			}
			return nil, errors.Wrapf(err, "%s: line %d", adapter.config.FilePath, lineNo)
		}
		records = append(records, rec)
		adapter.stats.recordsEmitted++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s: failed after line %d", adapter.config.FilePath, lineNo)
	}
	return records, nil
}

// parseRecordLine decodes one JSON object, keeping its key order.
func parseRecordLine(line []byte) (*processor.Record, error) {
	if !gjson.ValidBytes(line) {
		return nil, errors.New("invalid JSON")
	}
	result := gjson.ParseBytes(line)
	if !result.IsObject() {
		return nil, errors.Errorf("expected a JSON object, got %s", result.Type)
	}

	rec := processor.NewRecord()
	result.ForEach(func(key, value gjson.Result) bool {
		rec.Set(key.String(), jsonValue(value))
		return true
	})
	return rec, nil
}

// jsonValue maps a gjson scalar to a Value. Arrays and objects are kept as
// their raw JSON text.
func jsonValue(v gjson.Result) processor.Value {
	switch v.Type {
	case gjson.Null:
		return processor.Null
	case gjson.True:
		return processor.BoolValue(true)
	case gjson.False:
		return processor.BoolValue(false)
	case gjson.String:
		return processor.StringValue(v.Str)
	case gjson.Number:
		if !strings.ContainsAny(v.Raw, ".eE") {
			if i, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return processor.IntValue(i)
			}
		}
		return processor.FloatValue(v.Float())
	default:
		return processor.StringValue(v.Raw)
	}
}
