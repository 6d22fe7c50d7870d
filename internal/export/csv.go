package export

import (
	"encoding/csv"
	"io"

	"github.com/recordly/exportd/internal/domain"
)

// CSVSerializer writes a header row of display labels followed by one row
// per record.
type CSVSerializer struct{}

func (s *CSVSerializer) ContentType() string   { return "text/csv" }
func (s *CSVSerializer) FileExtension() string { return "csv" }

func (s *CSVSerializer) Write(w io.Writer, records []domain.Record, fields []domain.FieldSpec) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Label
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(fields))
	for _, rec := range records {
		for i, f := range fields {
			row[i] = cellString(rec[f.Name])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
