// Package channel provides the in-memory handoff between the scheduler and
// the runner pool. Completion is never observed through the bus; the job
// store is the source of truth.
package channel

import (
	"context"
	"errors"

	"github.com/recordly/exportd/internal/domain"
)

// ErrBufferFull reports a saturated bus. The caller's pending row stays in
// the store; the janitor re-enqueues it on a later sweep.
var ErrBufferFull = errors.New("job bus buffer full")

// MetricsSink records bus saturation. Methods must not block.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()
}

// Option configures a JobBus.
type Option func(*JobBus)

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *JobBus) { b.metrics = sink }
}

// JobBus is a bounded buffer of job requests.
type JobBus struct {
	ch      chan domain.JobRequest
	metrics MetricsSink
}

func NewJobBus(buffer int, opts ...Option) *JobBus {
	b := &JobBus{ch: make(chan domain.JobRequest, buffer)}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Enqueue places a request on the bus without blocking. The scan loops must
// never stall on a saturated buffer, so a full bus fails immediately with
// ErrBufferFull.
func (b *JobBus) Enqueue(ctx context.Context, req domain.JobRequest) error {
	select {
	case b.ch <- req:
		if b.metrics != nil {
			b.metrics.BufferSizeUpdate(len(b.ch))
		}
		return nil
	default:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	}
}

// Channel exposes the receive side for the runner pool.
func (b *JobBus) Channel() <-chan domain.JobRequest {
	return b.ch
}
