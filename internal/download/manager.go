package download

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"autoxdcc/internal/logging"
	"autoxdcc/internal/packlist"
	"autoxdcc/internal/transport"
)

const (
	defaultIdleTimeout = 60 * time.Second
	defaultListMarker  = "packlist"
)

// Options configures a Manager.
type Options struct {
	// Name labels log lines, usually the packlist name.
	Name          string
	MaxConcurrent int
	// Trusted decides whether a bot may send files. Nil trusts nobody.
	Trusted     func(bot string) bool
	Commander   transport.Commander
	IdleTimeout time.Duration
	ListMarker  string
	Logger      *slog.Logger
	// OnRequest is called after the worker successfully requested a pack.
	OnRequest func(Task)
}

// Manager is a bounded-concurrency scheduler for one packlist.
type Manager struct {
	name        string
	max         int
	sem         *semaphore.Weighted
	cmd         transport.Commander
	trusted     func(string) bool
	idleTimeout time.Duration
	listMarker  string
	logger      *slog.Logger
	onRequest   func(Task)
	now         func() time.Time

	mu       sync.Mutex
	awaiting []*task
	ongoing  map[string]*task
	listTask *task
	held     int
	state    WorkerState
	restart  bool
	cancel   context.CancelFunc
	wake     chan struct{}
	wg       sync.WaitGroup
}

// NewManager constructs an idle manager.
func NewManager(opts Options) *Manager {
	max := opts.MaxConcurrent
	if max < 1 {
		max = 1
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	marker := strings.TrimSpace(opts.ListMarker)
	if marker == "" {
		marker = defaultListMarker
	}
	trusted := opts.Trusted
	if trusted == nil {
		trusted = func(string) bool { return false }
	}
	logger := logging.NewComponentLogger(opts.Logger, "download")
	if opts.Name != "" {
		logger = logger.With(logging.Packlist(opts.Name))
	}
	return &Manager{
		name:        opts.Name,
		max:         max,
		sem:         semaphore.NewWeighted(int64(max)),
		cmd:         opts.Commander,
		trusted:     trusted,
		idleTimeout: idle,
		listMarker:  strings.ToLower(marker),
		logger:      logger,
		onRequest:   opts.OnRequest,
		now:         time.Now,
		ongoing:     make(map[string]*task),
		state:       WorkerIdle,
		wake:        make(chan struct{}, 1),
	}
}

// QueueDownload appends a new awaiting task. It never blocks.
func (m *Manager) QueueDownload(bot string, item packlist.Item) Task {
	t := newTask(bot, item, "", TypeRegular, m.now())

	m.mu.Lock()
	m.awaiting = append(m.awaiting, t)
	snap := t.snapshot()
	m.mu.Unlock()
	m.signal()

	m.logger.Info("download queued",
		logging.String(logging.FieldEventType, "download_queued"),
		logging.String(logging.FieldTaskID, t.id),
		logging.Bot(bot),
		logging.Filename(item.Filename),
		logging.Int("pack", item.PackNumber),
	)
	return snap
}

// Start launches the worker unless one is already running. It reports
// whether a worker will be running afterwards because of this call.
func (m *Manager) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case WorkerRunning:
		return false
	case WorkerStopRequested:
		// The current worker is still draining; bring a new one up once it exits.
		m.restart = true
		return true
	default:
		m.spawnLocked()
		return true
	}
}

// Terminate asks the worker to stop at its next wake-up. With force the
// worker is also released from a pending slot acquisition.
func (m *Manager) Terminate(force bool) {
	m.mu.Lock()
	m.restart = false
	switch m.state {
	case WorkerRunning:
		m.transitionLocked(WorkerStopRequested)
	case WorkerIdle:
		m.transitionLocked(WorkerStopped)
	}
	cancel := m.cancel
	m.mu.Unlock()

	m.signal()
	if force && cancel != nil {
		cancel()
	}
}

// Wait blocks until the worker goroutine has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// State reports the worker state.
func (m *Manager) State() WorkerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetTask returns the ongoing task matching filename.
func (m *Manager) GetTask(filename string) (Task, bool) {
	return m.taskFrom("", filename)
}

// IsOngoing reports whether filename matches a requested or connected task.
func (m *Manager) IsOngoing(filename string) bool {
	_, ok := m.taskFrom("", filename)
	return ok
}

// IsOngoingFrom is IsOngoing for an event from bot: a list-marker name only
// matches the list request sent to that bot.
func (m *Manager) IsOngoingFrom(bot, filename string) bool {
	_, ok := m.taskFrom(bot, filename)
	return ok
}

func (m *Manager) taskFrom(bot, filename string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.lookupLocked(bot, filename)
	if t == nil {
		return Task{}, false
	}
	return t.snapshot(), true
}

// CountAwaiting returns the number of queued tasks not yet requested.
func (m *Manager) CountAwaiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.awaiting)
}

// CountOngoing returns the number of pack downloads holding a slot. An
// outstanding list request is not counted.
func (m *Manager) CountOngoing() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// FreeSlots returns how many more packs may be requested right now.
func (m *Manager) FreeSlots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max - m.held
}

// MaxConcurrent returns the configured slot count.
func (m *Manager) MaxConcurrent() int { return m.max }

// Snapshot returns copies of every awaiting and ongoing task, oldest first.
func (m *Manager) Snapshot() []Task {
	m.mu.Lock()
	out := make([]Task, 0, len(m.awaiting)+len(m.ongoing))
	for _, t := range m.awaiting {
		out = append(out, t.snapshot())
	}
	for _, t := range m.ongoing {
		out = append(out, t.snapshot())
	}
	m.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) transitionLocked(to WorkerState) bool {
	if !CanTransition(m.state, to) {
		m.logger.Debug("worker transition rejected",
			logging.String("from", m.state.String()),
			logging.String("to", to.String()),
		)
		return false
	}
	m.state = to
	return true
}

func (m *Manager) spawnLocked() {
	if !m.transitionLocked(WorkerRunning) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(ctx)
}

// exitLocked moves the worker out of Running/StopRequested and honours a
// restart requested while it was stopping.
func (m *Manager) exitLocked() {
	switch m.state {
	case WorkerStopRequested:
		m.transitionLocked(WorkerStopped)
	case WorkerRunning:
		m.transitionLocked(WorkerIdle)
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.restart {
		m.restart = false
		m.spawnLocked()
	}
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	m.logger.Debug("download worker started")

	for {
		t, ok := m.next(ctx)
		if !ok {
			return
		}
		if err := m.sem.Acquire(ctx, 1); err != nil {
			m.mu.Lock()
			m.awaiting = append([]*task{t}, m.awaiting...)
			m.exitLocked()
			m.mu.Unlock()
			m.logger.Debug("download worker released from slot wait")
			return
		}
		requested, running := m.admit(t)
		if !running {
			return
		}
		if requested {
			m.request(ctx, t)
		}
	}
}

// next waits for an awaiting task. It returns false, after updating the
// worker state, when the worker should exit.
func (m *Manager) next(ctx context.Context) (*task, bool) {
	timer := time.NewTimer(m.idleTimeout)
	defer timer.Stop()
	expired := false

	for {
		m.mu.Lock()
		if m.state != WorkerRunning {
			m.exitLocked()
			m.mu.Unlock()
			return nil, false
		}
		if len(m.awaiting) > 0 {
			t := m.awaiting[0]
			m.awaiting[0] = nil
			m.awaiting = m.awaiting[1:]
			m.mu.Unlock()
			return t, true
		}
		if expired {
			m.exitLocked()
			m.mu.Unlock()
			m.logger.Debug("download worker idle")
			return nil, false
		}
		m.mu.Unlock()

		select {
		case <-m.wake:
		case <-timer.C:
			expired = true
		case <-ctx.Done():
		}
	}
}

// admit records t as requested while holding a slot, or gives the slot back
// and exits when a stop was requested during the wait.
func (m *Manager) admit(t *task) (requested, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != WorkerRunning {
		m.sem.Release(1)
		m.awaiting = append([]*task{t}, m.awaiting...)
		m.exitLocked()
		return false, false
	}
	if existing, ok := m.ongoing[t.key]; ok && existing != t {
		m.sem.Release(1)
		t.status = StatusAborted
		t.updated = m.now()
		t.done.finish(t.snapshot())
		logging.WarnWithContext(m.logger, "duplicate download dropped", "download_duplicate",
			logging.Filename(t.key),
			logging.String(logging.FieldImpact, "the file is already being transferred"),
			logging.String(logging.FieldErrorHint, "clear the download queue if this repeats"),
		)
		return false, true
	}
	t.status = StatusRequested
	t.updated = m.now()
	t.slotHeld = true
	m.held++
	m.ongoing[t.key] = t
	return true, true
}

func (m *Manager) request(ctx context.Context, t *task) {
	var err error
	if m.cmd == nil {
		err = errors.New("download: no commander configured")
	} else {
		err = m.cmd.RequestPack(ctx, t.bot, t.item.PackNumber)
	}
	if err != nil {
		m.mu.Lock()
		m.finishLocked(t, StatusAborted)
		m.mu.Unlock()
		logging.WarnWithContext(m.logger, "pack request failed", "download_request_failed",
			logging.String(logging.FieldTaskID, t.id),
			logging.Bot(t.bot),
			logging.Filename(t.item.Filename),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the episode will be retried on a later refresh"),
			logging.String(logging.FieldErrorHint, "check that the chat client is draining the outbox"),
		)
		return
	}

	m.mu.Lock()
	snap := t.snapshot()
	m.mu.Unlock()
	m.logger.Info("pack requested",
		logging.String(logging.FieldEventType, "download_requested"),
		logging.String(logging.FieldTaskID, t.id),
		logging.Bot(t.bot),
		logging.Filename(t.item.Filename),
		logging.Int("pack", t.item.PackNumber),
	)
	if m.onRequest != nil {
		m.onRequest(snap)
	}
}

// finishLocked moves t to a terminal status, drops it from the ongoing map
// and returns its slot. Calling it again for the same task is a no-op.
func (m *Manager) finishLocked(t *task, status Status) bool {
	if t.status.Terminal() {
		return false
	}
	if current, ok := m.ongoing[t.key]; ok && current == t {
		delete(m.ongoing, t.key)
	}
	if m.listTask == t {
		m.listTask = nil
	}
	t.status = status
	t.updated = m.now()
	if t.slotHeld {
		t.slotHeld = false
		m.held--
		m.sem.Release(1)
	}
	t.done.finish(t.snapshot())
	return true
}
