// Caninana
// Copyright (c) 2026, Caninana contributors

package monitor

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestHasTimedOut(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := New(clock)
	m.Start()

	if m.HasTimedOut(30 * time.Second) {
		t.Fatal("expected no timeout immediately after Start")
	}

	clock.advance(29 * time.Second)
	if m.HasTimedOut(30 * time.Second) {
		t.Fatal("expected no timeout before deadline")
	}

	clock.advance(1 * time.Second)
	if !m.HasTimedOut(30 * time.Second) {
		t.Fatal("expected timeout once elapsed equals deadline")
	}
}

func TestSystemClockMonotonic(t *testing.T) {
	m := New(nil)
	m.Start()
	if m.HasTimedOut(time.Hour) {
		t.Fatal("fresh monitor should not report timeout against a long deadline")
	}
}
