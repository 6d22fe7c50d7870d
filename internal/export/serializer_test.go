package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/recordly/exportd/internal/domain"
)

var testFields = []domain.FieldSpec{
	{Name: "id", Label: "ID"},
	{Name: "name", Label: "Full Name"},
	{Name: "amount", Label: "Amount"},
}

var testRecords = []domain.Record{
	{"id": "r-1", "name": "Ada", "amount": 12.5, "extra": "dropped"},
	{"id": "r-2", "name": "Grace", "amount": 40},
}

func TestForFormat(t *testing.T) {
	for _, f := range []domain.Format{domain.FormatCSV, domain.FormatJSON, domain.FormatExcel, domain.FormatPDF} {
		if _, err := ForFormat(f); err != nil {
			t.Errorf("ForFormat(%s): %v", f, err)
		}
	}
	if _, err := ForFormat(domain.Format("xml")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestCSV_HeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	if err := (&CSVSerializer{}).Write(&buf, testRecords, testFields); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if got := strings.Join(rows[0], "|"); got != "ID|Full Name|Amount" {
		t.Errorf("header = %q", got)
	}
	if rows[1][1] != "Ada" || rows[2][1] != "Grace" {
		t.Errorf("unexpected data rows: %v", rows[1:])
	}
}

// The JSON round-trip property: deserialized content matches the selected
// fields of the input records, in submitted field order.
func TestJSON_RoundTripPreservesSelectionAndOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONSerializer{}).Write(&buf, testRecords, testFields); err != nil {
		t.Fatalf("write: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != len(testRecords) {
		t.Fatalf("expected %d objects, got %d", len(testRecords), len(decoded))
	}

	if decoded[0]["id"] != "r-1" || decoded[0]["name"] != "Ada" {
		t.Errorf("first object = %v", decoded[0])
	}
	if _, ok := decoded[0]["extra"]; ok {
		t.Error("unselected field leaked into output")
	}

	// Key order in the raw bytes follows the field selection.
	raw := buf.String()
	i, j, k := strings.Index(raw, `"id"`), strings.Index(raw, `"name"`), strings.Index(raw, `"amount"`)
	if !(i < j && j < k) {
		t.Errorf("keys out of selection order in %q", raw)
	}
}

func TestJSON_EmptyRecordSet(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONSerializer{}).Write(&buf, nil, testFields); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty set = %q, want []", got)
	}
}

func TestExcel_ProducesWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := (&ExcelSerializer{}).Write(&buf, testRecords, testFields); err != nil {
		t.Fatalf("write: %v", err)
	}
	// xlsx files are zip archives.
	if buf.Len() == 0 || buf.Bytes()[0] != 'P' || buf.Bytes()[1] != 'K' {
		t.Errorf("output does not look like an xlsx archive (%d bytes)", buf.Len())
	}
}

func TestPDF_ProducesDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := (&PDFSerializer{}).Write(&buf, testRecords, testFields); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Errorf("output missing PDF header (%d bytes)", buf.Len())
	}
}
