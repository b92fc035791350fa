package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/withObsrvr/flight-pipeline-workflow/consumer"
	cliconfig "github.com/withObsrvr/flight-pipeline-workflow/internal/cli/config"
	"github.com/withObsrvr/flight-pipeline-workflow/internal/cli/utils"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [parquet file]",
	Short: "Show the schema and first rows of a Parquet file",
	Args:  cobra.ExactArgs(1),
	Example: `  flightctl inspect flights.parquet
  flightctl inspect flights.parquet --rows 3`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntP("rows", "n", 0, "Number of rows to print (default from inspect_rows)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := utils.RequireFile("parquet file", path); err != nil {
		return err
	}

	settings, err := cliconfig.Load()
	if err != nil {
		return utils.FormatError("loading CLI settings", err)
	}
	rows := settings.InspectRows
	if cmd.Flags().Changed("rows") {
		rows, _ = cmd.Flags().GetInt("rows")
	}

	info, err := consumer.InspectParquetFile(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	color.New(color.FgCyan, color.Bold).Fprintf(out, "📄 %s\n", path)
	fmt.Fprintf(out, "Rows:       %d\n", info.NumRows)
	fmt.Fprintf(out, "Row groups: %d\n", info.NumRowGroups)
	fmt.Fprintf(out, "Created by: %s\n\n", info.CreatedBy)

	color.New(color.FgGreen).Fprintln(out, "Schema:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, field := range info.Schema.Fields() {
		nullable := ""
		if field.Nullable {
			nullable = "nullable"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", field.Name, field.Type, nullable)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if rows <= 0 || info.NumRows == 0 {
		return nil
	}

	table, err := consumer.ReadParquetTable(context.Background(), path)
	if err != nil {
		return err
	}
	defer table.Release()

	fmt.Fprintln(out)
	color.New(color.FgGreen).Fprintf(out, "First %d row(s):\n", min(int64(rows), info.NumRows))
	return printRows(out, table, rows)
}

// printRows writes up to limit rows of table as aligned columns.
func printRows(out io.Writer, table arrow.Table, limit int) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	names := make([]string, table.NumCols())
	for i, field := range table.Schema().Fields() {
		names[i] = field.Name
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))

	reader := array.NewTableReader(table, int64(limit))
	defer reader.Release()

	printed := 0
	for reader.Next() && printed < limit {
		rec := reader.Record()
		for row := 0; row < int(rec.NumRows()) && printed < limit; row++ {
			cells := make([]string, rec.NumCols())
			for col := range cells {
				column := rec.Column(col)
				if column.IsNull(row) {
					cells[col] = "null"
					continue
				}
				cells[col] = column.ValueStr(row)
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
			printed++
		}
	}
	return w.Flush()
}
