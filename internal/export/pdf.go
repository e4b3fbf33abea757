package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// PDF layout in millimetres on landscape A4.
const (
	pdfMargin    = 10.0
	pdfRowHeight = 6.0
	pdfPageWidth = 297.0
)

// pdfColumns are the columns that fit a printed page.
var pdfColumns = []struct {
	index int
	width float64
	align string
}{
	{0, 18, "L"},  // type
	{1, 62, "L"},  // name
	{5, 26, "R"},  // liquid value
	{6, 24, "C"},  // due date
	{8, 18, "C"},  // confirmed
	{10, 40, "L"}, // category
	{12, 38, "L"}, // account
	{13, 20, "C"}, // installment
	{14, 31, "L"}, // tags
}

// WritePDF writes a landscape table with a totals line at the end.
func WritePDF(w io.Writer, d Data) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	headers := Headers(d.Fields)

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range pdfColumns {
			pdf.CellFormat(c.width, pdfRowHeight, tr(headers[c.index]), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(pdfPageWidth-2*pdfMargin, 8, "Transactions", "", 1, "L", false, 0, "")
		header()
	})
	pdf.AddPage()

	for _, row := range Rows(d) {
		for _, c := range pdfColumns {
			pdf.CellFormat(c.width, pdfRowHeight, tr(truncate(row[c.index], c.width)), "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(pdfPageWidth-2*pdfMargin, pdfRowHeight, totalsLabel(Totals(d.Transactions)), "", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// truncate keeps text roughly inside a cell of the given width at 8pt.
func truncate(s string, width float64) string {
	n := int(width / 1.7)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
