package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var (
	ErrEmptyFile         = errors.New("file has no header row")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Table is a decoded spreadsheet: one header row and the data rows below it.
// Every row is padded or truncated to len(Headers).
type Table struct {
	Headers []string
	Rows    [][]string
}

// Row returns row i as a header->value map.
func (t Table) Row(i int) map[string]string {
	out := make(map[string]string, len(t.Headers))
	for j, h := range t.Headers {
		out[h] = t.Rows[i][j]
	}
	return out
}

// Read decodes r according to the extension of filename (.csv or .xlsx).
func Read(filename string, r io.Reader) (Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(r)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// ReadCSV decodes comma or semicolon separated data. Input that is not valid
// UTF-8 is decoded as Windows-1252, the usual encoding of spreadsheet exports.
func ReadCSV(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return Table{}, fmt.Errorf("decode csv: %w", err)
		}
		data = decoded
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse csv: %w", err)
	}
	return newTable(records)
}

// detectDelimiter picks ';' when the header line has more semicolons than commas.
func detectDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		return ','
	}
	line := sc.Text()
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

// ReadXLSX decodes the first sheet of a workbook. Cells are read raw so
// dates arrive as Excel serial numbers regardless of display format.
func ReadXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return newTable(rows)
}

func newTable(records [][]string) (Table, error) {
	// Skip leading blank lines.
	for len(records) > 0 && blank(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return Table{}, ErrEmptyFile
	}

	headers := make([]string, 0, len(records[0]))
	for _, h := range records[0] {
		headers = append(headers, strings.TrimSpace(h))
	}
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return Table{}, ErrEmptyFile
	}

	t := Table{Headers: headers}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make([]string, len(headers))
		for i := range row {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
