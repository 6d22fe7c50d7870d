package provider

import (
	"testing"

	"github.com/recordly/exportd/internal/domain"
)

func TestBuildQuery(t *testing.T) {
	p := &SQLProvider{table: "orders", maxRecords: 500}

	tests := []struct {
		name     string
		query    domain.RecordQuery
		wantStmt string
		wantArgs int
	}{
		{
			name:     "no filter no sort",
			query:    domain.RecordQuery{},
			wantStmt: "SELECT * FROM orders LIMIT $1",
			wantArgs: 1,
		},
		{
			name:     "equality filters in column order",
			query:    domain.RecordQuery{FilterSpec: []byte(`{"status":"paid","region":"eu"}`)},
			wantStmt: "SELECT * FROM orders WHERE region = $1 AND status = $2 LIMIT $3",
			wantArgs: 3,
		},
		{
			name:     "ascending sort",
			query:    domain.RecordQuery{SortSpec: "created_at"},
			wantStmt: "SELECT * FROM orders ORDER BY created_at ASC LIMIT $1",
			wantArgs: 1,
		},
		{
			name:     "descending sort",
			query:    domain.RecordQuery{SortSpec: "-created_at"},
			wantStmt: "SELECT * FROM orders ORDER BY created_at DESC LIMIT $1",
			wantArgs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, args, err := p.buildQuery(tt.query)
			if err != nil {
				t.Fatalf("buildQuery: %v", err)
			}
			if stmt != tt.wantStmt {
				t.Errorf("stmt = %q, want %q", stmt, tt.wantStmt)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestBuildQueryRejectsHostileIdentifiers(t *testing.T) {
	p := &SQLProvider{table: "orders", maxRecords: 500}

	if _, _, err := p.buildQuery(domain.RecordQuery{SortSpec: "created_at; DROP TABLE orders"}); err == nil {
		t.Error("hostile sort column accepted")
	}
	if _, _, err := p.buildQuery(domain.RecordQuery{FilterSpec: []byte(`{"a=1 OR 1":"x"}`)}); err == nil {
		t.Error("hostile filter column accepted")
	}
	if _, _, err := p.buildQuery(domain.RecordQuery{FilterSpec: []byte(`not json`)}); err == nil {
		t.Error("malformed filter spec accepted")
	}
}

func TestNewSQLProviderValidatesTable(t *testing.T) {
	if _, err := NewSQLProvider(nil, "orders; --"); err == nil {
		t.Error("hostile table name accepted")
	}
	if _, err := NewSQLProvider(nil, "orders"); err != nil {
		t.Errorf("valid table rejected: %v", err)
	}
}
