package runner

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/recordly/exportd/internal/domain"
)

// DefaultDrainTimeout is the maximum time to spend on buffered job requests
// during shutdown.
const DefaultDrainTimeout = 30 * time.Second

// Pool runs a bounded set of workers consuming job requests from the bus.
// Job completion is observed only through the store, never via callbacks.
type Pool struct {
	runner       *Runner
	workers      int
	drainTimeout time.Duration
}

func NewPool(runner *Runner, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		runner:       runner,
		workers:      workers,
		drainTimeout: DefaultDrainTimeout,
	}
}

// WithDrainTimeout overrides the shutdown drain budget.
func (p *Pool) WithDrainTimeout(d time.Duration) *Pool {
	p.drainTimeout = d
	return p
}

// Run consumes requests until ctx is cancelled, then drains what remains in
// the buffer. Blocks until all workers have exited.
func (p *Pool) Run(ctx context.Context, ch <-chan domain.JobRequest) {
	log.Printf("runner: pool started, workers=%d", p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, ch, worker)
		}(i)
	}
	wg.Wait()
	log.Println("runner: pool stopped")
}

func (p *Pool) work(ctx context.Context, ch <-chan domain.JobRequest, worker int) {
	for {
		select {
		case <-ctx.Done():
			p.drain(ch, worker)
			return
		case req := <-ch:
			if err := p.runner.Execute(ctx, req); err != nil {
				log.Printf("runner: worker=%d job=%s error: %v", worker, req.JobID, err)
			}
		}
	}
}

// drain processes remaining buffered requests after the shutdown signal.
// Uses a fresh context since the main one is already cancelled.
func (p *Pool) drain(ch <-chan domain.JobRequest, worker int) {
	drainCtx, cancel := context.WithTimeout(context.Background(), p.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("runner: worker=%d drain timeout, processed %d requests", worker, count)
			}
			return
		case req, ok := <-ch:
			if !ok {
				return
			}
			if err := p.runner.Execute(drainCtx, req); err != nil {
				log.Printf("runner: worker=%d drain job=%s error: %v", worker, req.JobID, err)
			}
			count++
		default:
			if count > 0 {
				log.Printf("runner: worker=%d drain complete, processed %d requests", worker, count)
			}
			return
		}
	}
}
