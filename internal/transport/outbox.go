package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"autoxdcc/internal/logging"
)

// Outbox is a Commander that buffers commands for the host to collect.
type Outbox struct {
	limiter *rate.Limiter
	logger  *slog.Logger

	mu      sync.Mutex
	pending []Command
	nextSeq uint64
	ready   chan struct{}
	now     func() time.Time
}

// NewOutbox builds an outbox throttled to perSecond commands with the given
// burst. A non-positive rate disables throttling.
func NewOutbox(perSecond float64, burst int, logger *slog.Logger) *Outbox {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Outbox{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logging.NewComponentLogger(logger, "outbox"),
		ready:   make(chan struct{}),
		now:     time.Now,
	}
}

// RequestPack queues "XDCC SEND <pack>" for bot.
func (o *Outbox) RequestPack(ctx context.Context, bot string, pack int) error {
	return o.enqueue(ctx, CommandSend, bot, pack)
}

// RequestList queues "XDCC SEND LIST" for bot.
func (o *Outbox) RequestList(ctx context.Context, bot string) error {
	return o.enqueue(ctx, CommandList, bot, 0)
}

// Cancel queues "XDCC CANCEL" for bot.
func (o *Outbox) Cancel(ctx context.Context, bot string) error {
	return o.enqueue(ctx, CommandCancel, bot, 0)
}

func (o *Outbox) enqueue(ctx context.Context, kind CommandKind, bot string, pack int) error {
	text, err := Render(kind, bot, pack)
	if err != nil {
		return err
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	o.nextSeq++
	cmd := Command{Seq: o.nextSeq, Kind: kind, Bot: bot, Pack: pack, Text: text, QueuedAt: o.now()}
	o.pending = append(o.pending, cmd)
	close(o.ready)
	o.ready = make(chan struct{})
	o.mu.Unlock()

	o.logger.Debug("command queued",
		logging.String(logging.FieldEventType, "command_queued"),
		logging.Bot(bot),
		logging.String("command", text),
	)
	return nil
}

// Pending reports how many commands await collection.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Drain removes and returns up to max commands (all when max <= 0). When the
// outbox is empty it waits up to wait for a command to arrive.
func (o *Outbox) Drain(ctx context.Context, max int, wait time.Duration) ([]Command, error) {
	var timer <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timer = t.C
	}
	for {
		o.mu.Lock()
		if len(o.pending) > 0 || wait <= 0 {
			n := len(o.pending)
			if max > 0 && max < n {
				n = max
			}
			out := make([]Command, n)
			copy(out, o.pending[:n])
			o.pending = append(o.pending[:0], o.pending[n:]...)
			o.mu.Unlock()
			return out, nil
		}
		ready := o.ready
		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer:
			return []Command{}, nil
		case <-ready:
		}
	}
}
