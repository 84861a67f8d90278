package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteXLSX (the workbook's default sheet).
const SheetName = "Sheet1"

// Format of the exported file.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts xlsx or csv, case-insensitive.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want xlsx or csv)", s)
	}
}

// Write renders sheet in the given format.
func Write(w io.Writer, f Format, sheet Sheet) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, sheet)
	case FormatCSV:
		return WriteCSV(w, sheet)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func WriteCSV(w io.Writer, sheet Sheet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sheet.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(sheet.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func WriteXLSX(w io.Writer, sheet Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := setRow(f, 1, sheet.Columns); err != nil {
		return err
	}
	for i, row := range sheet.Rows {
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(SheetName, cell, &cells)
}
