package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusSink_SchedulerCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.TickStarted()
	sink.TickStarted()
	sink.TickCompleted(100*time.Millisecond, 3, nil)

	if got := testutil.ToFloat64(sink.ticksTotal); got != 2 {
		t.Errorf("ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(sink.schedulesClaimed); got != 3 {
		t.Errorf("schedules_claimed_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(sink.tickErrorsTotal); got != 0 {
		t.Errorf("tick_errors_total = %v, want 0", got)
	}
}

func TestPrometheusSink_JobOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.JobStarted("json")
	sink.JobsInFlightIncr()
	sink.JobFinished(OutcomeCompleted, "json", 2*time.Second)
	sink.JobsInFlightDecr()
	sink.JobFinished(OutcomeFailed, "pdf", time.Second)

	if got := testutil.ToFloat64(sink.jobsFinishedTotal.WithLabelValues(OutcomeCompleted, "json")); got != 1 {
		t.Errorf("finished{completed,json} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sink.jobsFinishedTotal.WithLabelValues(OutcomeFailed, "pdf")); got != 1 {
		t.Errorf("finished{failed,pdf} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sink.jobsInFlight); got != 0 {
		t.Errorf("jobs_in_flight = %v, want 0", got)
	}
}

func TestPrometheusSink_LeaderStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.LeaderStatusChanged(true)
	sink.LeaderAcquired()
	if got := testutil.ToFloat64(sink.leaderStatus); got != 1 {
		t.Errorf("leader_status = %v, want 1", got)
	}

	sink.LeaderStatusChanged(false)
	sink.LeaderLost("conn_lost")
	if got := testutil.ToFloat64(sink.leaderStatus); got != 0 {
		t.Errorf("leader_status = %v, want 0", got)
	}
	if got := testutil.ToFloat64(sink.leaderLostTotal.WithLabelValues("conn_lost")); got != 1 {
		t.Errorf("leader_lost{conn_lost} = %v, want 1", got)
	}
}

func TestPrometheusSink_DuplicateRegistrationIsSafe(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheusSink(reg)

	// Second sink against the same registry must not panic.
	sink := NewPrometheusSink(reg)
	sink.TickStarted()
}
