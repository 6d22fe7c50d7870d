package testutil

import (
	"testing"
	"time"
)

func TestFakeClock(t *testing.T) {
	fixed := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)

	if got := clock.Now(); !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}

	clock.Advance(90 * time.Minute)
	clock.Advance(30 * time.Minute)

	want := fixed.Add(2 * time.Hour)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("after two advances, Now() = %v, want %v", got, want)
	}
}

func TestTestContext_HasDeadline(t *testing.T) {
	ctx := TestContext(t)

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("TestContext should have a deadline")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > 6*time.Second {
		t.Errorf("deadline should be ~5s from now, got %v", remaining)
	}
}

func TestMustParseUUID(t *testing.T) {
	const raw = "7f3d9a50-52a1-4c6b-9be8-6e1a2d4f8c03"
	if id := MustParseUUID(raw); id.String() != raw {
		t.Errorf("unexpected UUID: %s", id)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("MustParseUUID should panic on garbage input")
		}
	}()
	MustParseUUID("garbage")
}
