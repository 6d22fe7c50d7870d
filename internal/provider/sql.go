// Package provider ships a reference record provider backed by a SQL table.
//
// The export core treats the provider as an opaque collaborator; deployments
// with their own data access replace this with an implementation of
// runner.RecordProvider. The reference provider supports equality filters
// and single-column sorting over one configured table.
package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/recordly/exportd/internal/domain"
)

// DefaultMaxRecords caps a single export when no explicit limit is set.
const DefaultMaxRecords = 100000

// identifierPattern rejects anything that cannot be a plain column or table
// name. Filter keys and sort columns are interpolated into SQL text, so this
// is a hard requirement, not a courtesy check.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type SQLProvider struct {
	db         *sql.DB
	table      string
	maxRecords int
}

func NewSQLProvider(db *sql.DB, table string) (*SQLProvider, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLProvider{db: db, table: table, maxRecords: DefaultMaxRecords}, nil
}

// WithMaxRecords overrides the per-export row cap.
func (p *SQLProvider) WithMaxRecords(n int) *SQLProvider {
	p.maxRecords = n
	return p
}

// Fetch resolves the query into records. FilterSpec is a JSON object of
// column -> value equality conditions; SortSpec is a column name with an
// optional leading '-' for descending order.
func (p *SQLProvider) Fetch(ctx context.Context, query domain.RecordQuery) ([]domain.Record, error) {
	stmt, args, err := p.buildQuery(query)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	for rows.Next() {
		values := make([]any, len(columns))
		dests := make([]any, len(columns))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}

		record := make(domain.Record, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (p *SQLProvider) buildQuery(query domain.RecordQuery) (string, []any, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM %s", p.table)

	var args []any
	if len(query.FilterSpec) > 0 {
		filters, err := parseFilterSpec(query.FilterSpec)
		if err != nil {
			return "", nil, err
		}
		for i, f := range filters {
			if i == 0 {
				sb.WriteString(" WHERE ")
			} else {
				sb.WriteString(" AND ")
			}
			args = append(args, f.value)
			fmt.Fprintf(&sb, "%s = $%d", f.column, len(args))
		}
	}

	if query.SortSpec != "" {
		column, direction := strings.TrimPrefix(query.SortSpec, "-"), "ASC"
		if strings.HasPrefix(query.SortSpec, "-") {
			direction = "DESC"
		}
		if !identifierPattern.MatchString(column) {
			return "", nil, domain.ValidationError{Field: "sortSpec", Message: "invalid sort column"}
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", column, direction)
	}

	args = append(args, p.maxRecords)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	return sb.String(), args, nil
}

type filter struct {
	column string
	value  any
}

// parseFilterSpec returns filters in deterministic column order so the
// generated SQL is stable for identical specs.
func parseFilterSpec(spec []byte) ([]filter, error) {
	var raw map[string]any
	if err := json.Unmarshal(spec, &raw); err != nil {
		return nil, domain.ValidationError{Field: "filterSpec", Message: "not a JSON object"}
	}

	columns := make([]string, 0, len(raw))
	for col := range raw {
		if !identifierPattern.MatchString(col) {
			return nil, domain.ValidationError{Field: "filterSpec", Message: fmt.Sprintf("invalid column %q", col)}
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	filters := make([]filter, 0, len(columns))
	for _, col := range columns {
		filters = append(filters, filter{column: col, value: raw[col]})
	}
	return filters, nil
}
