package metrics

import (
	"errors"
	"testing"
	"time"
)

// NoopSink must satisfy Sink and do nothing without panicking.
func TestNoopSink_ImplementsSink(t *testing.T) {
	var sink Sink = NewNoopSink()

	sink.TickStarted()
	sink.TickCompleted(time.Second, 3, errors.New("x"))
	sink.JobStarted("csv")
	sink.JobFinished(OutcomeCompleted, "csv", time.Second)
	sink.RecordsExported(10)
	sink.JobsInFlightIncr()
	sink.JobsInFlightDecr()
	sink.BufferSizeUpdate(1)
	sink.BufferCapacitySet(100)
	sink.EmitError()
	sink.RetentionPassCompleted(time.Second, 2, nil)
	sink.StuckJobsFailed(1)
	sink.LeaderStatusChanged(true)
	sink.LeaderAcquired()
	sink.LeaderLost("shutdown")
}
