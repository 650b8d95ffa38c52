package timer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"autoxdcc/internal/timer"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTimerFiresPeriodically(t *testing.T) {
	var calls atomic.Int32
	tm := timer.New(10*time.Millisecond, func() bool {
		calls.Add(1)
		return true
	})
	defer tm.Stop()

	if !tm.Register() {
		t.Fatal("expected Register to succeed")
	}
	if !tm.Register() {
		t.Fatal("expected repeated Register to report the active timer")
	}
	waitFor(t, "three calls", func() bool { return calls.Load() >= 3 })
	if !tm.Registered() {
		t.Fatal("expected timer to stay registered")
	}
}

func TestTimerUnregistersWhenCallbackDeclines(t *testing.T) {
	var calls atomic.Int32
	tm := timer.New(5*time.Millisecond, func() bool {
		calls.Add(1)
		return false
	})
	defer tm.Stop()

	tm.Register()
	waitFor(t, "unregister", func() bool { return !tm.Registered() })
	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one call, got %d", got)
	}
}

func TestTimerDisabledInterval(t *testing.T) {
	tm := timer.New(0, func() bool { return true })
	if tm.Register() {
		t.Fatal("expected zero interval to leave the timer disabled")
	}
	if tm.Registered() {
		t.Fatal("expected timer to be unregistered")
	}
}

func TestTimerTriggerOnce(t *testing.T) {
	var calls atomic.Int32
	tm := timer.New(time.Hour, func() bool {
		calls.Add(1)
		return true
	})
	defer tm.Stop()

	tm.TriggerOnce(10 * time.Millisecond)
	waitFor(t, "one-shot call", func() bool { return calls.Load() == 1 })
	if tm.Registered() {
		t.Fatal("one-shot must not register the periodic timer")
	}
}

func TestTimerStopDropsPendingOneShot(t *testing.T) {
	var calls atomic.Int32
	tm := timer.New(time.Hour, func() bool {
		calls.Add(1)
		return true
	})
	tm.TriggerOnce(200 * time.Millisecond)
	tm.Stop()
	time.Sleep(250 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("expected pending one-shot dropped, got %d calls", calls.Load())
	}
}

func TestTimerSetInterval(t *testing.T) {
	var calls atomic.Int32
	tm := timer.New(time.Hour, func() bool {
		calls.Add(1)
		return true
	})
	defer tm.Stop()

	tm.Register()
	tm.SetInterval(5 * time.Millisecond)
	waitFor(t, "calls at the shorter interval", func() bool { return calls.Load() >= 2 })
	if tm.Interval() != 5*time.Millisecond {
		t.Fatalf("unexpected interval %s", tm.Interval())
	}

	tm.SetInterval(0)
	if tm.Registered() {
		t.Fatal("expected zero interval to unregister")
	}
}
