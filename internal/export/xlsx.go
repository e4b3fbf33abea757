package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Transactions"

// amountColumns are written as numbers so spreadsheet formulas work on them.
var amountColumns = map[int]bool{2: true, 3: true, 4: true, 5: true}

// WriteXLSX writes one sheet with a bold header, the rows and a totals line.
func WriteXLSX(w io.Writer, d Data) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	headers := Headers(d.Fields)
	for col, h := range headers {
		if err := setCell(f, col, 1, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	rows := Rows(d)
	for r, row := range rows {
		for col, v := range row {
			var value any = v
			if amountColumns[col] && v != "" {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					value = n
				}
			}
			if err := setCell(f, col, r+2, value); err != nil {
				return err
			}
		}
	}

	t := Totals(d.Transactions)
	totalsRow := len(rows) + 3
	for col, v := range []any{"Totals", "Income", t.Income.InexactFloat64(), "Expense", t.Expense.InexactFloat64(), "Net", t.Net.InexactFloat64()} {
		if err := setCell(f, col, totalsRow, v); err != nil {
			return err
		}
	}
	start, _ := excelize.CoordinatesToCellName(1, totalsRow)
	if err := f.SetCellStyle(sheetName, start, start, bold); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheetName, cell, v); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return nil
}
