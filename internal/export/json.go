package export

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/recordly/exportd/internal/domain"
)

// JSONSerializer writes an array of objects. Keys are emitted manually in
// selection order; map marshalling would sort them and break the guarantee
// that output order matches the submitted field order.
type JSONSerializer struct{}

func (s *JSONSerializer) ContentType() string   { return "application/json" }
func (s *JSONSerializer) FileExtension() string { return "json" }

func (s *JSONSerializer) Write(w io.Writer, records []domain.Record, fields []domain.FieldSpec) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString("["); err != nil {
		return err
	}

	for i, rec := range records {
		if i > 0 {
			if _, err := bw.WriteString(","); err != nil {
				return err
			}
		}
		if err := writeObject(bw, rec, fields); err != nil {
			return err
		}
	}

	if _, err := bw.WriteString("]\n"); err != nil {
		return err
	}
	return bw.Flush()
}

func writeObject(bw *bufio.Writer, rec domain.Record, fields []domain.FieldSpec) error {
	if _, err := bw.WriteString("{"); err != nil {
		return err
	}
	for i, f := range fields {
		if i > 0 {
			if _, err := bw.WriteString(","); err != nil {
				return err
			}
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		val, err := json.Marshal(rec[f.Name])
		if err != nil {
			return err
		}
		if _, err := bw.Write(key); err != nil {
			return err
		}
		if _, err := bw.WriteString(":"); err != nil {
			return err
		}
		if _, err := bw.Write(val); err != nil {
			return err
		}
	}
	_, err := bw.WriteString("}")
	return err
}
