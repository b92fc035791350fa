package utils

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

// ExcelWriter appends rows to one sheet of a workbook. An existing file is
// reopened and new rows go after its last row.
type ExcelWriter struct {
	filePath  string
	sheetName string
	headers   []string
	file      *excelize.File
	nextRow   int
}

func NewExcelWriter(filePath, sheetName string, headers []string) (*ExcelWriter, error) {
	writer := &ExcelWriter{
		filePath:  filePath,
		sheetName: sheetName,
		headers:   headers,
	}

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error opening Excel file: %w", err)
		}
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			return nil, fmt.Errorf("error naming sheet: %w", err)
		}
	}
	writer.file = f

	idx, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return nil, fmt.Errorf("error looking up sheet %s: %w", sheetName, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(sheetName); err != nil {
			return nil, fmt.Errorf("error creating sheet %s: %w", sheetName, err)
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("error getting rows: %w", err)
	}
	writer.nextRow = len(rows) + 1

	if writer.nextRow == 1 && len(headers) > 0 {
		values := make([]interface{}, len(headers))
		for i, h := range headers {
			values[i] = h
		}
		if err := writer.AppendRow(values); err != nil {
			return nil, err
		}
	}

	return writer, nil
}

func (w *ExcelWriter) AppendRow(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.nextRow)
	if err != nil {
		return fmt.Errorf("error computing cell name: %w", err)
	}
	if err := w.file.SetSheetRow(w.sheetName, cell, &values); err != nil {
		return fmt.Errorf("error writing row %d: %w", w.nextRow, err)
	}
	w.nextRow++
	return nil
}

// Rows returns the number of rows written to the sheet, header included.
func (w *ExcelWriter) Rows() int {
	return w.nextRow - 1
}

func (w *ExcelWriter) Save() error {
	if err := w.file.SaveAs(w.filePath); err != nil {
		return fmt.Errorf("error saving Excel file: %w", err)
	}
	return nil
}

func (w *ExcelWriter) Close() error {
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
