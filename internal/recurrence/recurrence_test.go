package recurrence

import (
	"testing"
	"time"

	"github.com/recordly/exportd/internal/domain"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNext_NamedFrequencies(t *testing.T) {
	from := date(2024, time.January, 15, 9, 30)

	tests := []struct {
		name string
		freq domain.Frequency
		want time.Time
	}{
		{"daily", domain.FrequencyDaily, date(2024, time.January, 16, 9, 30)},
		{"weekly", domain.FrequencyWeekly, date(2024, time.January, 22, 9, 30)},
		{"monthly", domain.FrequencyMonthly, date(2024, time.February, 15, 9, 30)},
		{"quarterly", domain.FrequencyQuarterly, date(2024, time.April, 15, 9, 30)},
		{"yearly", domain.FrequencyYearly, date(2025, time.January, 15, 9, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Next(tt.freq, "", from)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%s, %s) = %s, want %s", tt.freq, from, got, tt.want)
			}
			if !got.After(from) {
				t.Errorf("Next(%s) must strictly exceed from", tt.freq)
			}
		})
	}
}

func TestNext_MonthlyClampsToLastValidDay(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"jan31 to feb29 leap", date(2024, time.January, 31, 8, 0), date(2024, time.February, 29, 8, 0)},
		{"jan31 to feb28 nonleap", date(2023, time.January, 31, 8, 0), date(2023, time.February, 28, 8, 0)},
		{"mar31 to apr30", date(2024, time.March, 31, 8, 0), date(2024, time.April, 30, 8, 0)},
		{"feb29 to mar29", date(2024, time.February, 29, 8, 0), date(2024, time.March, 29, 8, 0)},
		{"oct31 quarterly wraps year", date(2024, time.October, 31, 8, 0), date(2025, time.January, 31, 8, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			freq := domain.FrequencyMonthly
			if tt.name == "oct31 quarterly wraps year" {
				freq = domain.FrequencyQuarterly
			}
			got := Next(freq, "", tt.from)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%s, %s) = %s, want %s", freq, tt.from, got, tt.want)
			}
		})
	}
}

func TestNext_YearlyLeapDayDegrades(t *testing.T) {
	from := date(2024, time.February, 29, 6, 0)
	want := date(2025, time.February, 28, 6, 0)

	got := Next(domain.FrequencyYearly, "", from)
	if !got.Equal(want) {
		t.Errorf("yearly from Feb 29 = %s, want %s", got, want)
	}
}

// Daily recurrence across a DST transition keeps the same wall time rather
// than adding a flat 24h.
func TestNext_DailyAcrossDSTKeepsWallTime(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2024-03-09 07:00 EST; spring-forward happens overnight.
	from := time.Date(2024, time.March, 9, 7, 0, 0, 0, loc)
	got := Next(domain.FrequencyDaily, "", from)

	wantWall := time.Date(2024, time.March, 10, 7, 0, 0, 0, loc)
	if !got.Equal(wantWall) {
		t.Errorf("daily across DST = %s, want %s", got, wantWall)
	}
	if elapsed := got.Sub(from); elapsed == 24*time.Hour {
		t.Errorf("expected wall-clock step, got flat 24h interval")
	}
}

func TestNext_CustomExpression(t *testing.T) {
	from := date(2024, time.January, 15, 9, 30)

	// Every day at 02:00.
	got := Next(domain.FrequencyCustom, "0 2 * * *", from)
	want := date(2024, time.January, 16, 2, 0)
	if !got.Equal(want) {
		t.Errorf("custom next = %s, want %s", got, want)
	}
}

func TestNext_CustomExpressionFallback(t *testing.T) {
	from := date(2024, time.January, 15, 9, 30)

	for _, expr := range []string{"", "not a cron", "99 99 * * *"} {
		got := Next(domain.FrequencyCustom, expr, from)
		want := from.Add(DefaultFallbackInterval)
		if !got.Equal(want) {
			t.Errorf("fallback for %q = %s, want %s", expr, got, want)
		}
	}
}

func TestNext_Deterministic(t *testing.T) {
	from := date(2024, time.June, 1, 12, 0)
	for _, freq := range []domain.Frequency{
		domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly,
		domain.FrequencyQuarterly, domain.FrequencyYearly,
	} {
		a := Next(freq, "", from)
		b := Next(freq, "", from)
		if !a.Equal(b) {
			t.Errorf("Next(%s) not deterministic: %s vs %s", freq, a, b)
		}
	}
}

func TestValidExpr(t *testing.T) {
	if !ValidExpr("*/5 * * * *") {
		t.Error("expected */5 * * * * to be valid")
	}
	if ValidExpr("nope") {
		t.Error("expected 'nope' to be invalid")
	}
}
