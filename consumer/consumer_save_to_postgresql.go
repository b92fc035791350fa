package consumer

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// SaveToPostgreSQL bulk loads each batch with COPY.
type SaveToPostgreSQL struct {
	db         *pgxpool.Pool
	tableName  string
	processors []processor.Processor
}

// PostgresConfig holds the parsed consumer settings.
type PostgresConfig struct {
	ConnectionString string
	TableName        string
	MaxConns         int32
}

func parsePostgresConfig(config map[string]interface{}) (PostgresConfig, error) {
	var cfg PostgresConfig
	connStr, ok := config["connection_string"].(string)
	if !ok || connStr == "" {
		return cfg, fmt.Errorf("connection_string is required")
	}
	cfg.ConnectionString = connStr

	tableName, err := readTableName(config)
	if err != nil {
		return cfg, err
	}
	cfg.TableName = tableName

	cfg.MaxConns = 4
	if n, ok := intConfig(config, "max_conns"); ok && n > 0 {
		cfg.MaxConns = int32(n)
	}
	return cfg, nil
}

func NewSaveToPostgreSQL(config map[string]interface{}) (*SaveToPostgreSQL, error) {
	cfg, err := parsePostgresConfig(config)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection_string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns

	ctx := context.Background()
	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if _, err := db.Exec(ctx, flightTableDDL(cfg.TableName)); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating table: %w", err)
	}

	return &SaveToPostgreSQL{
		db:        db,
		tableName: cfg.TableName,
	}, nil
}

func (s *SaveToPostgreSQL) Subscribe(p processor.Processor) {
	s.processors = append(s.processors, p)
}

func (s *SaveToPostgreSQL) Process(ctx context.Context, msg processor.Message) error {
	batch, err := processor.BatchFromMessage(msg)
	if err != nil {
		return fmt.Errorf("SaveToPostgreSQL: %w", err)
	}
	table, err := BuildFlightTable(batch.Records)
	if err != nil {
		return fmt.Errorf("SaveToPostgreSQL: failed to build table: %w", err)
	}

	rows := make([][]interface{}, table.NumRows())
	for i := range rows {
		rows[i] = table.Row(i).SQLValues()
	}

	copied, err := s.db.CopyFrom(ctx, pgx.Identifier{s.tableName}, FlightColumnNames(), pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("error copying rows into %s: %w", s.tableName, err)
	}

	log.Printf("SaveToPostgreSQL: copied %d rows into %s", copied, s.tableName)
	return processor.Forward(ctx, s.processors, msg)
}

func (s *SaveToPostgreSQL) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}
