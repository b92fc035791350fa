package consumer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

func TestParseSaveToParquetConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantErr bool
		errMsg  string
		check   func(t *testing.T, cfg SaveToParquetConfig)
	}{
		{
			name: "FS defaults",
			config: map[string]interface{}{
				"output_path": "/data/out/flights.parquet",
			},
			check: func(t *testing.T, cfg SaveToParquetConfig) {
				assert.Equal(t, "FS", cfg.StorageType)
				assert.Equal(t, "snappy", cfg.Compression)
				assert.Equal(t, 64*1024, cfg.RowGroupSize)
				assert.Equal(t, 3, cfg.MaxRetries)
				assert.Equal(t, "/data/out", cfg.LocalPath)
				assert.Equal(t, "flights.parquet", objectKey(cfg))
			},
		},
		{
			name: "GCS with prefix",
			config: map[string]interface{}{
				"storage_type":   "gcs",
				"bucket_name":    "flights-bucket",
				"path_prefix":    "curated",
				"output_path":    "2015/flights.parquet",
				"compression":    "ZSTD",
				"row_group_size": 1000.0,
			},
			check: func(t *testing.T, cfg SaveToParquetConfig) {
				assert.Equal(t, "GCS", cfg.StorageType)
				assert.Equal(t, "zstd", cfg.Compression)
				assert.Equal(t, 1000, cfg.RowGroupSize)
				assert.Equal(t, "curated/2015/flights.parquet", objectKey(cfg))
			},
		},
		{
			name: "S3 default region",
			config: map[string]interface{}{
				"storage_type": "S3",
				"bucket_name":  "flights-bucket",
				"output_path":  "flights.parquet",
			},
			check: func(t *testing.T, cfg SaveToParquetConfig) {
				assert.Equal(t, "us-east-1", cfg.Region)
			},
		},
		{
			name:    "missing output_path",
			config:  map[string]interface{}{},
			wantErr: true,
			errMsg:  "output_path is required",
		},
		{
			name: "GCS missing bucket_name",
			config: map[string]interface{}{
				"storage_type": "GCS",
				"output_path":  "flights.parquet",
			},
			wantErr: true,
			errMsg:  "bucket_name is required for GCS storage type",
		},
		{
			name: "invalid storage_type",
			config: map[string]interface{}{
				"storage_type": "ftp",
				"output_path":  "flights.parquet",
			},
			wantErr: true,
			errMsg:  "unsupported storage_type: FTP",
		},
		{
			name: "invalid compression",
			config: map[string]interface{}{
				"output_path": "flights.parquet",
				"compression": "lzo",
			},
			wantErr: true,
			errMsg:  "unsupported compression: lzo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseSaveToParquetConfig(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.errMsg, err.Error())
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestCompressionCodec(t *testing.T) {
	tests := map[string]compress.Compression{
		"snappy": compress.Codecs.Snappy,
		"gzip":   compress.Codecs.Gzip,
		"zstd":   compress.Codecs.Zstd,
		"lz4":    compress.Codecs.Lz4Raw,
		"brotli": compress.Codecs.Brotli,
		"none":   compress.Codecs.Uncompressed,
	}
	for name, want := range tests {
		got, err := compressionCodec(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestSaveToParquetRoundTrip(t *testing.T) {
	for _, codec := range []string{"snappy", "gzip", "zstd", "lz4", "none"} {
		t.Run(codec, func(t *testing.T) {
			dir := t.TempDir()
			output := filepath.Join(dir, "flights.parquet")

			consumer, err := NewSaveToParquet(map[string]interface{}{
				"output_path": output,
				"compression": codec,
			})
			require.NoError(t, err)
			defer consumer.Close()

			batch := transformedBatch(t)
			mock := &MockProcessor{}
			consumer.Subscribe(mock)

			err = consumer.Process(context.Background(), processor.Message{Payload: batch})
			require.NoError(t, err)
			assert.Equal(t, 1, mock.calls)

			table, err := ReadParquetTable(context.Background(), output)
			require.NoError(t, err)
			defer table.Release()

			assert.Equal(t, int64(3), table.NumRows())
			assertFlightSchema(t, table.Schema())

			tr := array.NewTableReader(table, -1)
			defer tr.Release()
			require.True(t, tr.Next())
			rec := tr.Record()

			dates := rec.Column(0).(*array.Date32)
			assert.Equal(t, "2015-06-15", dates.Value(1).ToTime().Format("2006-01-02"))

			clock := rec.Column(5).(*array.String)
			assert.Equal(t, "13:30", clock.Value(1))

			ts := rec.Column(7).(*array.Timestamp)
			assert.Equal(t, time.Date(2015, 12, 31, 23, 59, 0, 0, time.UTC), ts.Value(2).ToTime(arrow.Microsecond))

			total := rec.Column(9).(*array.Int16)
			assert.Equal(t, []int16{2, 12, 0}, total.Int16Values())

			speed := rec.Column(8).(*array.Float64)
			assert.True(t, speed.IsNull(2))

			metrics := consumer.GetMetrics()
			assert.Equal(t, int64(1), metrics["files_written"])
			assert.Equal(t, int64(3), metrics["records_written"])
		})
	}
}

func TestSaveToParquetPhysicalSchema(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "flights.parquet")

	consumer, err := NewSaveToParquet(map[string]interface{}{"output_path": output})
	require.NoError(t, err)
	defer consumer.Close()

	require.NoError(t, consumer.Process(context.Background(), processor.Message{Payload: transformedBatch(t)}))

	rdr, err := file.OpenParquetFile(output, false)
	require.NoError(t, err)
	defer rdr.Close()

	schema := rdr.MetaData().Schema
	require.Equal(t, len(FlightColumns), schema.NumColumns())
	for i, col := range FlightColumns {
		assert.Equal(t, col.Name, schema.Column(i).Name())
	}
	assert.Equal(t, "flight-pipeline-workflow", rdr.MetaData().GetCreatedBy())

	info, err := InspectParquetFile(output)
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.NumRows)
	assert.Equal(t, 1, info.NumRowGroups)
	assertFlightSchema(t, info.Schema)
}

func TestSaveToParquetRowGroups(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "flights.parquet")

	consumer, err := NewSaveToParquet(map[string]interface{}{
		"output_path":    output,
		"row_group_size": 2,
	})
	require.NoError(t, err)
	defer consumer.Close()

	require.NoError(t, consumer.Process(context.Background(), processor.Message{Payload: transformedBatch(t)}))

	info, err := InspectParquetFile(output)
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.NumRows)
	assert.Equal(t, 2, info.NumRowGroups)
}

func TestSaveToParquetDryRun(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "flights.parquet")

	consumer, err := NewSaveToParquet(map[string]interface{}{
		"output_path": output,
		"dry_run":     true,
	})
	require.NoError(t, err)
	defer consumer.Close()

	require.NoError(t, consumer.Process(context.Background(), processor.Message{Payload: transformedBatch(t)}))

	_, err = os.Stat(output)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, int64(0), consumer.GetMetrics()["files_written"])
}

func TestSaveToParquetEmptyBatch(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "empty.parquet")

	consumer, err := NewSaveToParquet(map[string]interface{}{"output_path": output})
	require.NoError(t, err)
	defer consumer.Close()

	require.NoError(t, consumer.Process(context.Background(), processor.Message{Payload: processor.NewBatch(nil, "")}))

	info, err := InspectParquetFile(output)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.NumRows)
	assertFlightSchema(t, info.Schema)
}

func TestSaveToParquetFailuresLeaveNoFile(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "flights.parquet")

	consumer, err := NewSaveToParquet(map[string]interface{}{"output_path": output})
	require.NoError(t, err)
	defer consumer.Close()

	bad := processor.NewRecord()
	bad.Set(processor.ColFlightDate, processor.Null)
	bad.Set(processor.ColOnTime, processor.IntValue(1))

	err = consumer.Process(context.Background(), processor.Message{Payload: processor.Sequence{bad}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required column flight_date")

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))

	err = consumer.Process(context.Background(), processor.Message{Payload: "not a batch"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected *processor.Batch")
}

func TestSaveToParquetWritesThroughStorageClient(t *testing.T) {
	var gotKey string
	var gotBytes int
	client := &mockStorageClient{
		writeFunc: func(ctx context.Context, key string, data []byte) error {
			gotKey = key
			gotBytes = len(data)
			return nil
		},
	}

	cfg, err := ParseSaveToParquetConfig(map[string]interface{}{
		"storage_type": "S3",
		"bucket_name":  "flights-bucket",
		"path_prefix":  "curated",
		"output_path":  "flights.parquet",
	})
	require.NoError(t, err)

	consumer := newSaveToParquet(cfg, client)
	require.NoError(t, consumer.Process(context.Background(), processor.Message{Payload: transformedBatch(t)}))

	assert.Equal(t, "curated/flights.parquet", gotKey)
	assert.Greater(t, gotBytes, 0)
	assert.Equal(t, int64(gotBytes), consumer.GetMetrics()["bytes_written"])
}

func assertFlightSchema(t *testing.T, got *arrow.Schema) {
	t.Helper()
	require.Equal(t, len(FlightColumns), got.NumFields())
	for i, col := range FlightColumns {
		field := got.Field(i)
		assert.Equal(t, col.Name, field.Name)
		assert.True(t, arrow.TypeEqual(col.Type, field.Type), "column %s: got %s, want %s", col.Name, field.Type, col.Type)
		assert.Equal(t, col.Nullable, field.Nullable, "column %s nullability", col.Name)
	}
}

// MockProcessor counts the messages forwarded to it.
type MockProcessor struct {
	calls int
	last  processor.Message
}

func (m *MockProcessor) Process(ctx context.Context, msg processor.Message) error {
	m.calls++
	m.last = msg
	return nil
}

func (m *MockProcessor) Subscribe(p processor.Processor) {}
