package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                                           {}
func (n *NoopSink) TickCompleted(duration time.Duration, schedulesClaimed int, err error)  {}
func (n *NoopSink) JobStarted(format string)                                               {}
func (n *NoopSink) JobFinished(outcome string, format string, duration time.Duration)      {}
func (n *NoopSink) RecordsExported(count int)                                              {}
func (n *NoopSink) JobsInFlightIncr()                                                      {}
func (n *NoopSink) JobsInFlightDecr()                                                      {}
func (n *NoopSink) BufferSizeUpdate(size int)                                              {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                         {}
func (n *NoopSink) EmitError()                                                             {}
func (n *NoopSink) RetentionPassCompleted(duration time.Duration, deleted int, err error)  {}
func (n *NoopSink) StuckJobsFailed(count int)                                              {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                                      {}
func (n *NoopSink) LeaderAcquired()                                                        {}
func (n *NoopSink) LeaderLost(reason string)                                               {}
