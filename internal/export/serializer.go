// Package export renders record sets into downloadable artifacts.
//
// The format set is fixed at this layer; adding a format means adding a
// Serializer implementation, nothing in the job state machine changes.
package export

import (
	"fmt"
	"io"

	"github.com/recordly/exportd/internal/domain"
)

// Serializer turns a record set plus a field selection into bytes.
type Serializer interface {
	// Write renders records to w, emitting fields in selection order.
	Write(w io.Writer, records []domain.Record, fields []domain.FieldSpec) error

	ContentType() string
	FileExtension() string
}

// ForFormat returns the serializer for a format.
func ForFormat(f domain.Format) (Serializer, error) {
	switch f {
	case domain.FormatCSV:
		return &CSVSerializer{}, nil
	case domain.FormatJSON:
		return &JSONSerializer{}, nil
	case domain.FormatExcel:
		return &ExcelSerializer{}, nil
	case domain.FormatPDF:
		return &PDFSerializer{}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// cellString renders a record value for tabular formats.
func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
