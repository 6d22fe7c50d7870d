package export

import (
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/recordly/exportd/internal/domain"
)

// PDFSerializer renders records as a simple landscape table, one row per
// record, columns sized evenly across the page.
type PDFSerializer struct{}

func (s *PDFSerializer) ContentType() string   { return "application/pdf" }
func (s *PDFSerializer) FileExtension() string { return "pdf" }

func (s *PDFSerializer) Write(w io.Writer, records []domain.Record, fields []domain.FieldSpec) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(len(fields))
	const rowH = 7.0

	pdf.SetFont("Helvetica", "B", 9)
	for _, f := range fields {
		pdf.CellFormat(colW, rowH, f.Label, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, rec := range records {
		for _, f := range fields {
			pdf.CellFormat(colW, rowH, cellString(rec[f.Name]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}
