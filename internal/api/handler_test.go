package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"defaults", "", DefaultLimit, 0, false},
		{"custom values", "?limit=50&offset=100", 50, 100, false},
		{"limit at max", "?limit=1000", MaxLimit, 0, false},
		{"zero limit uses default", "?limit=0", DefaultLimit, 0, false},
		{"limit exceeds max", "?limit=2000", 0, 0, true},
		{"negative limit", "?limit=-1", 0, 0, true},
		{"negative offset", "?offset=-1", 0, 0, true},
		{"invalid limit", "?limit=abc", 0, 0, true},
		{"invalid offset", "?offset=xyz", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/exports"+tt.query, nil)
			limit, offset, err := parsePagination(req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("got limit=%d offset=%d, want limit=%d offset=%d",
					limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
