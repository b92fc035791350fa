package consumer

import (
	"context"
	"fmt"
	"log"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
	"github.com/withObsrvr/flight-pipeline-workflow/utils"
)

type SaveToExcel struct {
	filePath   string
	writer     *utils.ExcelWriter
	processors []processor.Processor
}

func NewSaveToExcel(config map[string]interface{}) (*SaveToExcel, error) {
	filePath, ok := config["file_path"].(string)
	if !ok || filePath == "" {
		return nil, fmt.Errorf("invalid configuration: missing 'file_path'")
	}
	sheetName := "Flights"
	if val, ok := config["sheet_name"].(string); ok && val != "" {
		sheetName = val
	}

	writer, err := utils.NewExcelWriter(filePath, sheetName, FlightColumnNames())
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel writer: %w", err)
	}

	return &SaveToExcel{
		filePath: filePath,
		writer:   writer,
	}, nil
}

func (c *SaveToExcel) Subscribe(processor processor.Processor) {
	c.processors = append(c.processors, processor)
}

func (c *SaveToExcel) Process(ctx context.Context, msg processor.Message) error {
	batch, err := processor.BatchFromMessage(msg)
	if err != nil {
		return fmt.Errorf("SaveToExcel: %w", err)
	}
	table, err := BuildFlightTable(batch.Records)
	if err != nil {
		return fmt.Errorf("SaveToExcel: failed to build table: %w", err)
	}

	for i := 0; i < table.NumRows(); i++ {
		if err := c.writer.AppendRow(excelValues(table.Row(i))); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := c.writer.Save(); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	log.Printf("SaveToExcel: wrote %d rows to %s", table.NumRows(), c.filePath)

	return processor.Forward(ctx, c.processors, msg)
}

// excelValues is SQLValues with the date columns rendered as text.
func excelValues(row FlightRow) []interface{} {
	values := row.SQLValues()
	values[0] = row.FlightDate.Format(flightDateLayout)
	if row.FlightDatetime.Valid {
		values[7] = row.FlightDatetime.Time.Format(flightDatetimeLayout)
	}
	return values
}

func (c *SaveToExcel) Close() error {
	if c.writer != nil {
		return c.writer.Close()
	}
	return nil
}
