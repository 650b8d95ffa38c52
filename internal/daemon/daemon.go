package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"autoxdcc/internal/api"
	"autoxdcc/internal/config"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/metrics"
	"autoxdcc/internal/notifications"
	"autoxdcc/internal/preflight"
	"autoxdcc/internal/state"
	"autoxdcc/internal/transport"
	"autoxdcc/internal/workflow"
)

// ErrAlreadyRunning is returned by Start when the daemon is already active.
var ErrAlreadyRunning = errors.New("daemon already running")

const closeTimeout = 10 * time.Second

// Daemon coordinates the packlist schedulers and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *state.Store
	workflow *workflow.Manager
	outbox   *transport.Outbox
	metrics  *metrics.Metrics
	shows    *api.ShowService
	history  *api.DownloadService

	lockPath string
	lock     *flock.Flock

	mu         sync.Mutex
	registered bool
	checks     []preflight.Result
	api        *apiServer
	closed     bool

	running atomic.Bool
}

// New constructs a daemon with initialized dependencies. m may be nil.
func New(cfg *config.Config, store *state.Store, logger *slog.Logger, wf *workflow.Manager, outbox *transport.Outbox, m *metrics.Metrics) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil || outbox == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, and outbox")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		outbox:   outbox,
		metrics:  m,
		shows:    api.NewShowService(store),
		history:  api.NewDownloadService(store),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and enables the packlist refresh timers.
// The first call registers every configured packlist.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("daemon is closed")
	}
	if d.running.Load() {
		return ErrAlreadyRunning
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another axdcc daemon instance is already running")
	}

	if !d.registered {
		if err := d.workflow.RegisterPacklists(ctx); err != nil {
			_ = d.lock.Unlock()
			return fmt.Errorf("register packlists: %w", err)
		}
		d.registered = true
	} else {
		d.workflow.ResumeRefresh()
	}

	d.checks = preflight.RunAll(ctx, d.cfg)
	for _, check := range d.checks {
		if check.Passed {
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldImpact, "affected packlists or downloads may fail"),
			logging.String(logging.FieldErrorHint, "fix the reported path or endpoint and restart"),
		)
	}

	d.running.Store(true)
	d.logger.Info("axdcc daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("packlists", len(d.workflow.Names())),
	)
	return nil
}

// Stop pauses the refresh timers and releases the daemon lock. Transfers
// already scheduled keep running and their events are still handled.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Daemon) stopLocked() {
	if !d.running.Load() {
		return
	}
	d.workflow.PauseRefresh()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a new daemon may refuse to start"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("axdcc daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon, shuts the HTTP API and the workflow down and
// closes the store.
func (d *Daemon) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.stopLocked()
	server := d.api
	d.api = nil
	d.mu.Unlock()

	server.stop()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	var errs []error
	if err := d.workflow.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// ServeAPI starts the HTTP API when an api_bind address is configured. It
// stops when ctx ends or the daemon closes.
func (d *Daemon) ServeAPI(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.api != nil || d.closed {
		return nil
	}
	server := newAPIServer(d.cfg, d, d.logger)
	if server == nil {
		return nil
	}
	if err := server.start(ctx); err != nil {
		return err
	}
	d.api = server
	return nil
}

// Running reports whether the daemon holds its lock and refreshes packlists.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Workflow exposes the packlist manager for event delivery and operator
// commands.
func (d *Daemon) Workflow() *workflow.Manager { return d.workflow }

// Shows exposes the show operations.
func (d *Daemon) Shows() *api.ShowService { return d.shows }

// History exposes the download history.
func (d *Daemon) History() *api.DownloadService { return d.history }

// Commands hands up to max pending commands to the chat client, waiting at
// most wait for the first one.
func (d *Daemon) Commands(ctx context.Context, max int, wait time.Duration) ([]transport.Command, error) {
	cmds, err := d.outbox.Drain(ctx, max, wait)
	for _, cmd := range cmds {
		d.metrics.CommandQueued(string(cmd.Kind))
	}
	return cmds, err
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	stats, err := d.history.Stats(ctx)
	if err != nil {
		d.logger.Debug("download stats unavailable", logging.Error(err))
		stats = map[string]int{}
	}

	d.mu.Lock()
	checks := make([]api.StatusLine, 0, len(d.checks))
	for _, check := range d.checks {
		severity := "ok"
		if !check.Passed {
			severity = "error"
		}
		checks = append(checks, api.StatusLine{Label: check.Name, Severity: severity, Detail: check.Detail})
	}
	address := d.api.address()
	d.mu.Unlock()

	return api.DaemonStatus{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		DatabasePath:  d.store.Path(),
		LockFilePath:  d.lockPath,
		APIAddress:    address,
		Workflow:      api.FromStatusSummary(d.workflow.Status()),
		DownloadStats: stats,
		PendingOutbox: d.outbox.Pending(),
		Checks:        checks,
	}
}

// LogPath returns the current daemon log file.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
