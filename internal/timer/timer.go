// Package timer drives periodic packlist refreshes.
package timer

import (
	"context"
	"sync"
	"time"
)

// Timer calls fn every interval while registered. fn returning false
// unregisters the timer.
type Timer struct {
	fn func() bool

	mu       sync.Mutex
	interval time.Duration
	gen      int
	cancel   context.CancelFunc
	reset    chan time.Duration
	pending  map[*time.Timer]struct{}
	wg       sync.WaitGroup
}

// New returns an unregistered timer.
func New(interval time.Duration, fn func() bool) *Timer {
	return &Timer{
		fn:       fn,
		interval: interval,
		pending:  make(map[*time.Timer]struct{}),
	}
}

// Register starts periodic calls. It reports false when the interval is not
// positive, which leaves the timer disabled.
func (t *Timer) Register() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return true
	}
	if t.interval <= 0 {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.gen++
	t.cancel = cancel
	t.reset = make(chan time.Duration, 1)
	t.wg.Add(1)
	go t.loop(ctx, t.gen, t.interval, t.reset)
	return true
}

// Unregister stops periodic calls. It does not wait for a call in progress.
func (t *Timer) Unregister() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unregisterLocked()
}

func (t *Timer) unregisterLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Registered reports whether periodic calls are active.
func (t *Timer) Registered() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Interval returns the current period.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// SetInterval changes the period. A registered timer picks the new period up
// immediately; a non-positive period unregisters it.
func (t *Timer) SetInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
	if t.cancel == nil {
		return
	}
	if d <= 0 {
		t.unregisterLocked()
		return
	}
	select {
	case <-t.reset:
	default:
	}
	t.reset <- d
}

// TriggerOnce calls fn a single time after delay, independently of the
// periodic schedule.
func (t *Timer) TriggerOnce(delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wg.Add(1)
	var once *time.Timer
	once = time.AfterFunc(delay, func() {
		defer t.wg.Done()
		t.mu.Lock()
		delete(t.pending, once)
		t.mu.Unlock()
		t.fn()
	})
	t.pending[once] = struct{}{}
}

// Stop unregisters the timer, drops pending one-shot calls and waits for
// running calls to return.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.unregisterLocked()
	for pending := range t.pending {
		if pending.Stop() {
			t.wg.Done()
		}
		delete(t.pending, pending)
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Timer) loop(ctx context.Context, gen int, interval time.Duration, reset <-chan time.Duration) {
	defer t.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-reset:
			ticker.Reset(d)
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if !t.fn() {
				t.mu.Lock()
				if t.gen == gen {
					t.unregisterLocked()
				}
				t.mu.Unlock()
				return
			}
		}
	}
}
