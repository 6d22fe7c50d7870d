package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the metrics backend is unavailable, implementations
// log warnings and continue.
type Sink interface {
	// Scheduler metrics
	TickStarted()
	TickCompleted(duration time.Duration, schedulesClaimed int, err error)

	// Runner metrics
	JobStarted(format string)
	JobFinished(outcome string, format string, duration time.Duration)
	RecordsExported(count int)
	JobsInFlightIncr()
	JobsInFlightDecr()

	// Bus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()

	// Retention / janitor metrics
	RetentionPassCompleted(duration time.Duration, deleted int, err error)
	StuckJobsFailed(count int)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// Outcome constants for JobFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeSkipped   = "skipped" // lost the claim or already terminal
)
