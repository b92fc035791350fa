package consumer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// SaveToParquetConfig defines configuration for the Parquet consumer
type SaveToParquetConfig struct {
	StorageType     string `json:"storage_type"` // "FS", "GCS", "S3"
	OutputPath      string `json:"output_path"`
	BucketName      string `json:"bucket_name"`
	PathPrefix      string `json:"path_prefix"`
	LocalPath       string `json:"local_path"` // FS base directory, derived from output_path
	Compression     string `json:"compression"`
	RowGroupSize    int    `json:"row_group_size"`
	MaxRetries      int    `json:"max_retries"`
	Region          string `json:"region"`           // For S3
	CredentialsFile string `json:"credentials_file"` // For GCS
	Debug           bool   `json:"debug"`
	DryRun          bool   `json:"dry_run"`
}

// SaveToParquet writes each batch it receives as one Parquet file.
type SaveToParquet struct {
	config        SaveToParquetConfig
	storageClient StorageClient
	processors    []processor.Processor
	allocator     memory.Allocator
	key           string

	mu             sync.Mutex
	filesWritten   int64
	recordsWritten int64
	bytesWritten   int64
	lastWrite      time.Time
}

// ParseSaveToParquetConfig reads the consumer config map and applies
// defaults.
func ParseSaveToParquetConfig(config map[string]interface{}) (SaveToParquetConfig, error) {
	cfg := SaveToParquetConfig{
		StorageType:  "FS",
		Compression:  "snappy",
		RowGroupSize: 64 * 1024,
		MaxRetries:   3,
	}

	if storageType, ok := config["storage_type"].(string); ok && storageType != "" {
		cfg.StorageType = strings.ToUpper(storageType)
	}
	if outputPath, ok := config["output_path"].(string); ok {
		cfg.OutputPath = outputPath
	}
	if cfg.OutputPath == "" {
		return cfg, fmt.Errorf("output_path is required")
	}
	if bucketName, ok := config["bucket_name"].(string); ok {
		cfg.BucketName = bucketName
	}
	if pathPrefix, ok := config["path_prefix"].(string); ok {
		cfg.PathPrefix = pathPrefix
	}
	if compression, ok := config["compression"].(string); ok && compression != "" {
		cfg.Compression = strings.ToLower(compression)
	}
	if _, err := compressionCodec(cfg.Compression); err != nil {
		return cfg, err
	}
	if n, ok := intConfig(config, "row_group_size"); ok && n > 0 {
		cfg.RowGroupSize = n
	}
	if n, ok := intConfig(config, "max_retries"); ok && n >= 0 {
		cfg.MaxRetries = n
	}
	if region, ok := config["region"].(string); ok {
		cfg.Region = region
	}
	if credentialsFile, ok := config["credentials_file"].(string); ok {
		cfg.CredentialsFile = credentialsFile
	}
	if debug, ok := config["debug"].(bool); ok {
		cfg.Debug = debug
	}
	if dryRun, ok := config["dry_run"].(bool); ok {
		cfg.DryRun = dryRun
	}

	switch cfg.StorageType {
	case "FS":
		outputPath := cfg.OutputPath
		if strings.HasPrefix(outputPath, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return cfg, fmt.Errorf("failed to get home directory: %w", err)
			}
			outputPath = strings.Replace(outputPath, "~", home, 1)
		}
		cfg.OutputPath = outputPath
		cfg.LocalPath = filepath.Dir(outputPath)
	case "GCS":
		if cfg.BucketName == "" {
			return cfg, fmt.Errorf("bucket_name is required for GCS storage type")
		}
	case "S3":
		if cfg.BucketName == "" {
			return cfg, fmt.Errorf("bucket_name is required for S3 storage type")
		}
		if cfg.Region == "" {
			cfg.Region = "us-east-1"
		}
	default:
		return cfg, fmt.Errorf("unsupported storage_type: %s", cfg.StorageType)
	}
	return cfg, nil
}

// NewSaveToParquet creates the Parquet consumer.
func NewSaveToParquet(config map[string]interface{}) (*SaveToParquet, error) {
	cfg, err := ParseSaveToParquetConfig(config)
	if err != nil {
		return nil, err
	}

	var client StorageClient
	if !cfg.DryRun {
		client, err = createStorageClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		client = NewRetryableStorageClient(client, cfg.MaxRetries)
	}

	return newSaveToParquet(cfg, client), nil
}

func newSaveToParquet(cfg SaveToParquetConfig, client StorageClient) *SaveToParquet {
	s := &SaveToParquet{
		config:        cfg,
		storageClient: client,
		processors:    []processor.Processor{},
		allocator:     memory.NewGoAllocator(),
		key:           objectKey(cfg),
	}
	log.Printf("SaveToParquet: initialized (storage=%s, path=%s, compression=%s)", cfg.StorageType, cfg.OutputPath, cfg.Compression)
	return s
}

// objectKey is the storage key of the output file. FS keys are relative
// to LocalPath.
func objectKey(cfg SaveToParquetConfig) string {
	if cfg.StorageType == "FS" {
		return filepath.Base(cfg.OutputPath)
	}
	key := strings.TrimPrefix(cfg.OutputPath, "/")
	if cfg.PathPrefix != "" {
		key = path.Join(cfg.PathPrefix, key)
	}
	return key
}

// Subscribe adds a processor to the subscription list
func (s *SaveToParquet) Subscribe(p processor.Processor) {
	s.processors = append(s.processors, p)
}

// Process builds the typed table for the batch and persists it.
func (s *SaveToParquet) Process(ctx context.Context, msg processor.Message) error {
	batch, err := processor.BatchFromMessage(msg)
	if err != nil {
		return fmt.Errorf("SaveToParquet: %w", err)
	}

	table, err := BuildFlightTable(batch.Records)
	if err != nil {
		return fmt.Errorf("SaveToParquet: failed to build table: %w", err)
	}

	if err := s.persist(ctx, table); err != nil {
		return fmt.Errorf("SaveToParquet: %w", err)
	}

	return processor.Forward(ctx, s.processors, msg)
}

// persist serializes the table and writes it through the storage client.
func (s *SaveToParquet) persist(ctx context.Context, table *FlightTable) error {
	record, err := table.NewRecord(s.allocator)
	if err != nil {
		return fmt.Errorf("failed to build Arrow record: %w", err)
	}
	defer record.Release()

	data, err := s.writeParquet(record)
	if err != nil {
		return fmt.Errorf("failed to write Parquet: %w", err)
	}

	if s.config.DryRun {
		log.Printf("[DRY RUN] Would write %d records (%d bytes) to %s", table.NumRows(), len(data), s.config.OutputPath)
		return nil
	}

	if err := s.storageClient.Write(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to write to storage: %w", err)
	}

	s.mu.Lock()
	s.filesWritten++
	s.recordsWritten += int64(table.NumRows())
	s.bytesWritten += int64(len(data))
	s.lastWrite = time.Now()
	s.mu.Unlock()

	if s.config.Debug {
		log.Printf("SaveToParquet: wrote %d records, %d bytes to %s", table.NumRows(), len(data), s.storageClient.URI(s.key))
	}
	log.Printf("Data saved to %s", s.config.OutputPath)
	return nil
}

// writeParquet writes Arrow record to Parquet format
func (s *SaveToParquet) writeParquet(record arrow.Record) ([]byte, error) {
	var buf bytes.Buffer

	codec, err := compressionCodec(s.config.Compression)
	if err != nil {
		return nil, err
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDataPageSize(1024*1024),
		parquet.WithMaxRowGroupLength(int64(s.config.RowGroupSize)),
		parquet.WithCreatedBy("flight-pipeline-workflow"),
	)

	writer, err := pqarrow.NewFileWriter(record.Schema(), &buf, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}

	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write record: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return buf.Bytes(), nil
}

// compressionCodec maps a compression name to its Parquet codec.
func compressionCodec(name string) (compress.Compression, error) {
	switch name {
	case "snappy", "":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported compression: %s", name)
	}
}

// Close closes the storage client.
func (s *SaveToParquet) Close() error {
	if s.storageClient != nil {
		if err := s.storageClient.Close(); err != nil {
			return fmt.Errorf("error closing storage client: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	log.Printf("SaveToParquet: closed. Files written: %d, Records: %d, Bytes: %d",
		s.filesWritten, s.recordsWritten, s.bytesWritten)
	return nil
}

// GetMetrics returns consumer metrics
func (s *SaveToParquet) GetMetrics() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"files_written":   s.filesWritten,
		"records_written": s.recordsWritten,
		"bytes_written":   s.bytesWritten,
		"last_write":      s.lastWrite,
		"output_path":     s.config.OutputPath,
	}
}

// intConfig reads an integer config value decoded from YAML (int) or JSON
// (float64).
func intConfig(config map[string]interface{}, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
