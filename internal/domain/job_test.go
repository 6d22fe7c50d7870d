package domain

import "testing"

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusProcessing, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestFormat_Values(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatCSV, "csv"},
		{FormatExcel, "excel"},
		{FormatPDF, "pdf"},
		{FormatJSON, "json"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if string(tt.format) != tt.want {
				t.Errorf("Format = %q, want %q", tt.format, tt.want)
			}
		})
	}
}
