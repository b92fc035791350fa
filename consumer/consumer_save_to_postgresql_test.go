package consumer

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

func TestParsePostgresConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		want    PostgresConfig
		wantErr string
	}{
		{
			name: "defaults",
			config: map[string]interface{}{
				"connection_string": "postgres://localhost/flights",
			},
			want: PostgresConfig{ConnectionString: "postgres://localhost/flights", TableName: "flights", MaxConns: 4},
		},
		{
			name: "overrides",
			config: map[string]interface{}{
				"connection_string": "postgres://localhost/flights",
				"table_name":        "flights_curated",
				"max_conns":         10,
			},
			want: PostgresConfig{ConnectionString: "postgres://localhost/flights", TableName: "flights_curated", MaxConns: 10},
		},
		{
			name:    "missing connection string",
			config:  map[string]interface{}{},
			wantErr: "connection_string is required",
		},
		{
			name: "bad table name",
			config: map[string]interface{}{
				"connection_string": "postgres://localhost/flights",
				"table_name":        "flights-2015",
			},
			wantErr: "invalid characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePostgresConfig(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestSaveToPostgreSQL_Integration runs against FLIGHTS_TEST_POSTGRES_DSN
// when it is set.
func TestSaveToPostgreSQL_Integration(t *testing.T) {
	dsn := os.Getenv("FLIGHTS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FLIGHTS_TEST_POSTGRES_DSN not set")
	}

	table := fmt.Sprintf("flights_test_%d", time.Now().UnixNano())
	consumer, err := NewSaveToPostgreSQL(map[string]interface{}{
		"connection_string": dsn,
		"table_name":        table,
	})
	require.NoError(t, err)
	defer consumer.Close()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	defer pool.Exec(ctx, "DROP TABLE IF EXISTS "+table)

	require.NoError(t, consumer.Process(ctx, processor.Message{Payload: transformedBatch(t)}))

	var count, onTime int64
	err = pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*), COUNT(*) FILTER (WHERE on_time) FROM %s", table)).Scan(&count, &onTime)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(1), onTime)
}
