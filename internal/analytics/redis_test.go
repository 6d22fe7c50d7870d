package analytics

import (
	"testing"
	"time"
)

func TestBucketLabel(t *testing.T) {
	at := time.Date(2024, 3, 15, 9, 42, 31, 0, time.UTC)

	tests := []struct {
		name   string
		window time.Duration
		want   string
	}{
		{"minute", time.Minute, "202403150942"},
		{"hour", time.Hour, "2024031509"},
		{"day", 24 * time.Hour, "20240315"},
		{"unknown falls back to hour", 7 * time.Minute, "2024031509"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bucketLabel(at, tt.window); got != tt.want {
				t.Errorf("bucketLabel(%s) = %q, want %q", tt.window, got, tt.want)
			}
		})
	}
}

func TestBuildKeyIsStableWithinBucket(t *testing.T) {
	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	k1 := buildKey("sched-1", "csv", "success", base.Add(5*time.Minute), time.Hour)
	k2 := buildKey("sched-1", "csv", "success", base.Add(45*time.Minute), time.Hour)
	if k1 != k2 {
		t.Errorf("same-bucket keys differ: %q vs %q", k1, k2)
	}

	k3 := buildKey("sched-1", "csv", "failure", base, time.Hour)
	if k1 == k3 {
		t.Error("different outcomes must not share a key")
	}
}
