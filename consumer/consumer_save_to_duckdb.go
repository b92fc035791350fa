package consumer

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/marcboeker/go-duckdb/v2"
	"github.com/sirupsen/logrus"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// SaveToDuckDB loads each batch into a DuckDB table through the native
// appender.
type SaveToDuckDB struct {
	DBPath    string
	TableName string
	Replace   bool

	db         *sql.DB
	connector  *duckdb.Connector
	nativeConn *duckdb.Conn
	processors []processor.Processor
	logger     *logrus.Entry

	mu           sync.Mutex
	tableReady   bool
	rowsAppended int64
}

// NewSaveToDuckDB opens (or creates) the database at db_path.
func NewSaveToDuckDB(config map[string]interface{}) (*SaveToDuckDB, error) {
	c := &SaveToDuckDB{
		DBPath: "flights.duckdb",
		logger: logrus.WithField("consumer", "SaveToDuckDB"),
	}

	if dbPath, ok := config["db_path"].(string); ok && dbPath != "" {
		c.DBPath = dbPath
	}
	tableName, err := readTableName(config)
	if err != nil {
		return nil, err
	}
	c.TableName = tableName
	if replace, ok := config["replace"].(bool); ok {
		c.Replace = replace
	}

	if err := c.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"db_path": c.DBPath,
		"table":   c.TableName,
		"replace": c.Replace,
	}).Info("Initialized SaveToDuckDB consumer")

	return c, nil
}

// initDB opens the connector, a database/sql handle for DDL, and a native
// connection for the appender.
func (c *SaveToDuckDB) initDB() error {
	connector, err := duckdb.NewConnector(c.DBPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create connector: %w", err)
	}
	c.connector = connector
	c.db = sql.OpenDB(connector)

	conn, err := connector.Connect(context.Background())
	if err != nil {
		c.db.Close()
		return fmt.Errorf("failed to get native connection: %w", err)
	}
	duckConn, ok := conn.(*duckdb.Conn)
	if !ok {
		conn.Close()
		c.db.Close()
		return fmt.Errorf("failed to cast to *duckdb.Conn")
	}
	c.nativeConn = duckConn
	return nil
}

// ensureTable runs once per consumer, so Replace drops only data from
// earlier runs.
func (c *SaveToDuckDB) ensureTable(ctx context.Context) error {
	if c.tableReady {
		return nil
	}
	if c.Replace {
		if _, err := c.db.ExecContext(ctx, flightDropTableSQL(c.TableName)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", c.TableName, err)
		}
	}
	if _, err := c.db.ExecContext(ctx, flightTableDDL(c.TableName)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", c.TableName, err)
	}
	c.tableReady = true
	return nil
}

func (c *SaveToDuckDB) Subscribe(p processor.Processor) {
	c.processors = append(c.processors, p)
}

func (c *SaveToDuckDB) Process(ctx context.Context, msg processor.Message) error {
	batch, err := processor.BatchFromMessage(msg)
	if err != nil {
		return fmt.Errorf("SaveToDuckDB: %w", err)
	}
	table, err := BuildFlightTable(batch.Records)
	if err != nil {
		return fmt.Errorf("SaveToDuckDB: failed to build table: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureTable(ctx); err != nil {
		return err
	}

	appender, err := duckdb.NewAppenderFromConn(c.nativeConn, "", c.TableName)
	if err != nil {
		return fmt.Errorf("failed to create appender for table %s: %w", c.TableName, err)
	}

	for i := 0; i < table.NumRows(); i++ {
		values := table.Row(i).SQLValues()
		args := make([]driver.Value, len(values))
		for j, v := range values {
			args[j] = v
		}
		if err := appender.AppendRow(args...); err != nil {
			appender.Close()
			return fmt.Errorf("failed to append row %d: %w", i, err)
		}
	}

	if err := appender.Close(); err != nil {
		return fmt.Errorf("failed to flush appender: %w", err)
	}
	c.rowsAppended += int64(table.NumRows())

	c.logger.WithFields(logrus.Fields{
		"rows":  table.NumRows(),
		"table": c.TableName,
	}).Info("Appended flights")

	return processor.Forward(ctx, c.processors, msg)
}

// RowsAppended returns the number of rows written so far.
func (c *SaveToDuckDB) RowsAppended() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rowsAppended
}

func (c *SaveToDuckDB) Close() error {
	var firstErr error
	if c.nativeConn != nil {
		if err := c.nativeConn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.connector != nil {
		if err := c.connector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
