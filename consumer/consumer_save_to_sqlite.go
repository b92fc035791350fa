package consumer

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// SaveToSQLite inserts each batch into a SQLite table in one transaction.
type SaveToSQLite struct {
	db         *sql.DB
	tableName  string
	processors []processor.Processor
}

func NewSaveToSQLite(config map[string]interface{}) (*SaveToSQLite, error) {
	dbPath, ok := config["db_path"].(string)
	if !ok || dbPath == "" {
		return nil, fmt.Errorf("invalid configuration: missing 'db_path'")
	}
	tableName, err := readTableName(config)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	s, err := newSaveToSQLite(db, tableName)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newSaveToSQLite(db *sql.DB, tableName string) (*SaveToSQLite, error) {
	if _, err := db.Exec(flightTableDDL(tableName)); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &SaveToSQLite{
		db:        db,
		tableName: tableName,
	}, nil
}

func (s *SaveToSQLite) Subscribe(p processor.Processor) {
	s.processors = append(s.processors, p)
}

func (s *SaveToSQLite) Process(ctx context.Context, msg processor.Message) error {
	batch, err := processor.BatchFromMessage(msg)
	if err != nil {
		return fmt.Errorf("SaveToSQLite: %w", err)
	}
	table, err := BuildFlightTable(batch.Records)
	if err != nil {
		return fmt.Errorf("SaveToSQLite: failed to build table: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, flightInsertSQL(s.tableName, questionPlaceholder))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < table.NumRows(); i++ {
		if _, err := stmt.ExecContext(ctx, table.Row(i).SQLValues()...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("SaveToSQLite: inserted %d rows into %s", table.NumRows(), s.tableName)
	return processor.Forward(ctx, s.processors, msg)
}

func (s *SaveToSQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
