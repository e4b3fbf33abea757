package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes a header row, one row per transaction and no totals, so
// the file can be imported back.
func WriteCSV(w io.Writer, d Data) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers(d.Fields)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(Rows(d)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
