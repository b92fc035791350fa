package consumer

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ParquetFileInfo summarizes a Parquet file without loading its data.
type ParquetFileInfo struct {
	NumRows      int64
	NumRowGroups int
	CreatedBy    string
	Schema       *arrow.Schema
}

// ReadParquetTable reads a local Parquet file into an Arrow table. The
// caller must release the table.
func ReadParquetTable(ctx context.Context, path string) (arrow.Table, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	table, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read table from %s: %w", path, err)
	}
	return table, nil
}

// InspectParquetFile returns row counts and the Arrow schema of a local
// Parquet file.
func InspectParquetFile(path string) (*ParquetFileInfo, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}
	schema, err := fr.Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	return &ParquetFileInfo{
		NumRows:      rdr.NumRows(),
		NumRowGroups: rdr.NumRowGroups(),
		CreatedBy:    rdr.MetaData().GetCreatedBy(),
		Schema:       schema,
	}, nil
}
