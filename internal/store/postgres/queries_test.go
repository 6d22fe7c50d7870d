package postgres

import (
	"strings"
	"testing"
)

// The lifecycle statements are conditional UPDATEs; the WHERE clause carries
// the expected prior status. These tests pin the guards and side effects the
// rest of the system relies on.

func TestLifecycleQueriesGuardPriorStatus(t *testing.T) {
	tests := []struct {
		name  string
		query string
		guard string
	}{
		{"mark processing only from pending", queryMarkProcessing, "status = 'pending'"},
		{"complete only from processing", queryCompleteJob, "status = 'processing'"},
		{"fail only from processing", queryFailJob, "status = 'processing'"},
		{"cancel only from non-terminal", queryCancelJob, "status IN ('pending', 'processing')"},
		{"touch download only when completed", queryTouchDownload, "status = 'completed'"},
		{"claim only at the due instant", queryClaimSchedule, "next_run_at = $2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.query, tt.guard) {
				t.Errorf("statement missing guard %q:\n%s", tt.guard, tt.query)
			}
		})
	}
}

func TestFailJobAdvancesRetryCounter(t *testing.T) {
	if !strings.Contains(queryFailJob, "retries = retries + 1") {
		t.Errorf("failed transition must increment retries:\n%s", queryFailJob)
	}
}

func TestTouchDownloadIsMonotonic(t *testing.T) {
	if !strings.Contains(queryTouchDownload, "last_downloaded_at IS NULL OR last_downloaded_at < $2") {
		t.Errorf("download timestamp must never move backwards:\n%s", queryTouchDownload)
	}
}
