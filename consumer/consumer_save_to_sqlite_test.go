package consumer

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func TestNewSaveToSQLite(t *testing.T) {
	t.Run("missing db_path", func(t *testing.T) {
		_, err := NewSaveToSQLite(map[string]interface{}{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing 'db_path'")
	})

	t.Run("invalid table name", func(t *testing.T) {
		_, err := NewSaveToSQLite(map[string]interface{}{
			"db_path":    filepath.Join(t.TempDir(), "flights.db"),
			"table_name": "flights; DROP TABLE users",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid characters")
	})
}

func TestSaveToSQLite_ProcessWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "flights"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	consumer, err := newSaveToSQLite(db, "flights")
	require.NoError(t, err)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "flights" (flight_date, departure_delay`))
	for i := 0; i < 3; i++ {
		prep.ExpectExec().WithArgs(anyArgs(len(FlightColumns))...).
			WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}
	mock.ExpectCommit()

	downstream := &MockProcessor{}
	consumer.Subscribe(downstream)

	err = consumer.Process(context.Background(), processor.Message{Payload: transformedBatch(t)})
	require.NoError(t, err)
	assert.Equal(t, 1, downstream.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveToSQLite_RollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	consumer, err := newSaveToSQLite(db, "flights")
	require.NoError(t, err)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "flights"`))
	prep.ExpectExec().WithArgs(anyArgs(len(FlightColumns))...).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = consumer.Process(context.Background(), processor.Message{Payload: transformedBatch(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert row 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveToSQLite_RealDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "flights.db")

	consumer, err := NewSaveToSQLite(map[string]interface{}{"db_path": dbPath})
	require.NoError(t, err)

	require.NoError(t, consumer.Process(context.Background(), processor.Message{Payload: transformedBatch(t)}))
	require.NoError(t, consumer.Close())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count, totalDelay, onTime int64
	row := db.QueryRow("SELECT COUNT(*), SUM(total_delay), SUM(on_time) FROM flights")
	require.NoError(t, row.Scan(&count, &totalDelay, &onTime))
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(14), totalDelay)
	assert.Equal(t, int64(1), onTime)

	var nullSpeed int64
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM flights WHERE average_speed IS NULL").Scan(&nullSpeed))
	assert.Equal(t, int64(1), nullSpeed)

	var clock string
	require.NoError(t, db.QueryRow("SELECT departure_time_decimal FROM flights WHERE month = 6").Scan(&clock))
	assert.Equal(t, "13:30", clock)
}
