package throttle

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestFailureGate_OpensAfterThreshold(t *testing.T) {
	gate := NewFailureGate(3, time.Minute)
	id := uuid.New()

	for i := 0; i < 2; i++ {
		gate.RecordFailure(id)
		if err := gate.Allow(id); err != nil {
			t.Fatalf("gate opened after %d failures, threshold is 3", i+1)
		}
	}

	gate.RecordFailure(id)
	if err := gate.Allow(id); err != ErrGateOpen {
		t.Errorf("Allow after threshold = %v, want ErrGateOpen", err)
	}
}

func TestFailureGate_CooldownAllowsSingleProbe(t *testing.T) {
	gate := NewFailureGate(1, time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	gate.clock = func() time.Time { return now }

	id := uuid.New()
	gate.RecordFailure(id)

	if err := gate.Allow(id); err != ErrGateOpen {
		t.Fatalf("expected open gate, got %v", err)
	}

	now = now.Add(time.Minute)
	if err := gate.Allow(id); err != nil {
		t.Fatalf("expected probe after cooldown, got %v", err)
	}
	// Second caller during the probe stays blocked.
	if err := gate.Allow(id); err != ErrGateOpen {
		t.Errorf("expected second probe blocked, got %v", err)
	}
}

func TestFailureGate_SuccessCloses(t *testing.T) {
	gate := NewFailureGate(1, time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	gate.clock = func() time.Time { return now }

	id := uuid.New()
	gate.RecordFailure(id)
	now = now.Add(time.Minute)
	if err := gate.Allow(id); err != nil {
		t.Fatalf("probe: %v", err)
	}
	gate.RecordSuccess(id)

	if err := gate.Allow(id); err != nil {
		t.Errorf("expected closed gate after success, got %v", err)
	}
}

func TestFailureGate_UnknownScheduleAllowed(t *testing.T) {
	gate := NewFailureGate(1, time.Minute)
	if err := gate.Allow(uuid.New()); err != nil {
		t.Errorf("unknown schedule should be allowed, got %v", err)
	}
}

func TestFailureGate_Forget(t *testing.T) {
	gate := NewFailureGate(1, time.Hour)
	id := uuid.New()
	gate.RecordFailure(id)
	gate.Forget(id)

	if err := gate.Allow(id); err != nil {
		t.Errorf("forgotten schedule should be allowed, got %v", err)
	}
}
