package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"autoxdcc/internal/config"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/metrics"
	"autoxdcc/internal/notifications"
	"autoxdcc/internal/services"
	"autoxdcc/internal/state"
	"autoxdcc/internal/transport"
)

// ErrUnknownPacklist is returned for operations naming a packlist that was
// never registered.
var ErrUnknownPacklist = fmt.Errorf("%w: unknown packlist", services.ErrNotFound)

const (
	runOnceDelay    = time.Second
	historyTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Manager coordinates every registered packlist.
type Manager struct {
	cfg      *config.Config
	store    *state.Store
	cmd      transport.Commander
	logger   *slog.Logger
	notifier notifications.Service
	metrics  *metrics.Metrics

	baseCtx context.Context
	cancel  context.CancelFunc
	cycles  sync.WaitGroup

	mu        sync.RWMutex
	packlists map[string]*Packlist
	closed    bool

	inflightMu sync.Mutex
	inflight   map[string]string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithMetrics reports scheduler activity to m.
func WithMetrics(m *metrics.Metrics) ManagerOption {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// NewManager constructs a workflow manager that notifies through ntfy when
// configured.
func NewManager(cfg *config.Config, store *state.Store, cmd transport.Commander, logger *slog.Logger, opts ...ManagerOption) *Manager {
	return NewManagerWithNotifier(cfg, store, cmd, logger, notifications.NewService(cfg), opts...)
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *state.Store, cmd transport.Commander, logger *slog.Logger, notifier notifications.Service, opts ...ManagerOption) *Manager {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:       cfg,
		store:     store,
		cmd:       cmd,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		notifier:  notifier,
		baseCtx:   ctx,
		cancel:    cancel,
		packlists: make(map[string]*Packlist),
		inflight:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Packlist returns the registered packlist called name.
func (m *Manager) Packlist(name string) (*Packlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pl, ok := m.packlists[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPacklist, name)
	}
	return pl, nil
}

// Names lists the registered packlists in lexical order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.packlists))
	for name := range m.packlists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) all() []*Packlist {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Packlist, 0, len(m.packlists))
	for _, pl := range m.packlists {
		out = append(out, pl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// claim records filename as queued by packlist. It reports false when the
// file is already in flight anywhere.
func (m *Manager) claim(filename, packlist string) bool {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	if _, taken := m.inflight[filename]; taken {
		return false
	}
	m.inflight[filename] = packlist
	return true
}

func (m *Manager) forget(filename string) {
	m.inflightMu.Lock()
	delete(m.inflight, filename)
	m.inflightMu.Unlock()
}

// InFlight returns the de-duplication set as filename to packlist name.
func (m *Manager) InFlight() map[string]string {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	out := make(map[string]string, len(m.inflight))
	for filename, name := range m.inflight {
		out[filename] = name
	}
	return out
}

// ClearDownloadQueue drops the in-flight set and returns how many entries it
// held. Running transfers are not cancelled.
func (m *Manager) ClearDownloadQueue() int {
	m.inflightMu.Lock()
	n := len(m.inflight)
	m.inflight = make(map[string]string)
	m.inflightMu.Unlock()

	m.logger.Info("download queue cleared",
		logging.String(logging.FieldEventType, "download_queue_cleared"),
		logging.Int("entries", n),
	)
	return n
}

// Shutdown stops every timer, cancels running refresh cycles and
// force-terminates the download workers. It waits for them to exit or for
// ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	packlists := m.all()
	for _, pl := range packlists {
		pl.timer.Stop()
	}
	m.cancel()

	var group errgroup.Group
	for _, pl := range packlists {
		pl.downloads.Terminate(true)
		group.Go(func() error {
			pl.downloads.Wait()
			return nil
		})
	}
	group.Go(func() error {
		m.cycles.Wait()
		return nil
	})

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stopped"))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("workflow shutdown: %w", ctx.Err())
	}
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) publish(event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(m.baseCtx, historyTimeout)
	defer cancel()
	if err := m.notifier.Publish(ctx, event, payload); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

func (m *Manager) record(entry state.Download) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.baseCtx), historyTimeout)
	defer cancel()
	if err := m.store.RecordDownload(ctx, entry); err != nil {
		logging.WarnWithContext(m.logger, "download history not written", "history_write_failed",
			logging.Filename(entry.Filename),
			logging.Error(err),
			logging.String(logging.FieldImpact, "download history is incomplete"),
			logging.String(logging.FieldErrorHint, "check state database access"),
		)
	}
}
