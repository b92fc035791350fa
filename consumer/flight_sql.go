package consumer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

// MaxTableNameLength bounds table names accepted by the SQL sinks.
const MaxTableNameLength = 64

var validTableNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validTableName checks if a table name is safe to interpolate into SQL.
func validTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(name) > MaxTableNameLength {
		return fmt.Errorf("table name %q exceeds %d characters", name, MaxTableNameLength)
	}
	if !validTableNameRegex.MatchString(name) {
		return fmt.Errorf("table name %q contains invalid characters", name)
	}
	return nil
}

// quoteIdent renders name as a double-quoted SQL identifier. DuckDB, SQLite
// and PostgreSQL all accept this form.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// flightTableDDL returns CREATE TABLE IF NOT EXISTS for the flight schema.
func flightTableDDL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quoteIdent(table))
	for i, col := range FlightColumns {
		fmt.Fprintf(&b, "    %s %s", col.Name, col.SQLType)
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		if i < len(FlightColumns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// flightInsertSQL returns a parameterized INSERT. placeholder renders the
// i-th (1-based) bind parameter.
func flightInsertSQL(table string, placeholder func(i int) string) string {
	names := FlightColumnNames()
	params := make([]string, len(names))
	for i := range names {
		params[i] = placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(names, ", "), strings.Join(params, ", "))
}

func flightDropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + quoteIdent(table)
}

func questionPlaceholder(int) string { return "?" }

func readTableName(config map[string]interface{}) (string, error) {
	name := "flights"
	if val, ok := config["table_name"].(string); ok && val != "" {
		name = val
	}
	if err := validTableName(name); err != nil {
		return "", err
	}
	return name, nil
}
