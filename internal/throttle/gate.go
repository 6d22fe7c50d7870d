// Package throttle pauses schedules that keep failing.
//
// After threshold consecutive failed runs a schedule's gate opens and the
// scheduler skips it until the cooldown elapses. The next claim after
// cooldown is a probe: one more failure re-opens the gate, a success closes
// it. Advisory only; never affects job-state correctness.
package throttle

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrGateOpen = errors.New("schedule paused after repeated failures")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateProbing
)

type scheduleState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

type FailureGate struct {
	mu        sync.Mutex
	states    map[uuid.UUID]*scheduleState
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

func NewFailureGate(threshold int, cooldown time.Duration) *FailureGate {
	return &FailureGate{
		states:    make(map[uuid.UUID]*scheduleState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Allow reports whether the schedule may be claimed.
func (g *FailureGate) Allow(scheduleID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.states[scheduleID]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if g.clock().Sub(s.openedAt) >= g.cooldown {
			s.state = stateProbing
			return nil
		}
		return ErrGateOpen
	case stateProbing:
		return ErrGateOpen
	default:
		return nil
	}
}

func (g *FailureGate) RecordSuccess(scheduleID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.states[scheduleID]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

func (g *FailureGate) RecordFailure(scheduleID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.states[scheduleID]
	if !ok {
		s = &scheduleState{}
		g.states[scheduleID] = s
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= g.threshold {
		s.state = stateOpen
		s.openedAt = g.clock()
	}
}

// Forget drops tracking for a deleted schedule.
func (g *FailureGate) Forget(scheduleID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.states, scheduleID)
}
