package download

import (
	"context"
	"fmt"
	"strings"

	"autoxdcc/internal/logging"
	"autoxdcc/internal/packlist"
)

// OfferOutcome is the decision taken for an incoming DCC offer.
type OfferOutcome int

const (
	// OfferIgnored means no task matched; another handler may claim the offer.
	OfferIgnored OfferOutcome = iota
	// OfferConnect means the offer belongs to a task and should be accepted.
	OfferConnect
	// OfferAbort means the sender is not trusted and the offer was cancelled.
	OfferAbort
)

func (o OfferOutcome) String() string {
	switch o {
	case OfferIgnored:
		return "ignored"
	case OfferConnect:
		return "connect"
	case OfferAbort:
		return "abort"
	default:
		return fmt.Sprintf("offer_outcome(%d)", int(o))
	}
}

// OfferResult carries the outcome and, when one matched, the task.
type OfferResult struct {
	Outcome OfferOutcome
	Task    Task
	Matched bool
}

// lookupLocked resolves filename to an ongoing task: exact key first, then
// the outstanding list request when the name carries the list marker and
// bot is the one the list was requested from, then any pack whose
// catalogued name is the same release. An empty bot matches any sender.
func (m *Manager) lookupLocked(bot, filename string) *task {
	if filename == "" {
		return nil
	}
	if t, ok := m.ongoing[filename]; ok {
		return t
	}
	if m.listTask != nil && strings.Contains(strings.ToLower(filename), m.listMarker) &&
		(bot == "" || strings.EqualFold(bot, m.listTask.bot)) {
		return m.listTask
	}
	var match *task
	for _, t := range m.ongoing {
		if t.typ != TypeRegular || !packlist.SameRelease(t.key, filename) {
			continue
		}
		if match == nil || t.created.Before(match.created) {
			match = t
		}
	}
	return match
}

// SendOfferCallback reconciles an incoming offer. Offers from untrusted bots
// are cancelled and any matching task is aborted; the task is still returned
// so callers can report it.
func (m *Manager) SendOfferCallback(ctx context.Context, bot, filename string, size int64, addr string) OfferResult {
	m.mu.Lock()
	t := m.lookupLocked(bot, filename)

	if !m.trusted(bot) {
		var result OfferResult
		result.Outcome = OfferAbort
		if t != nil {
			m.finishLocked(t, StatusAborted)
			result.Task = t.snapshot()
			result.Matched = true
		}
		m.mu.Unlock()

		logging.WarnWithContext(m.logger, "offer from untrusted bot cancelled", "offer_untrusted",
			logging.Bot(bot),
			logging.Filename(filename),
			logging.String(logging.FieldImpact, "the file was not accepted"),
			logging.String(logging.FieldErrorHint, "add the bot to trusted if it is legitimate"),
		)
		m.sendCancel(ctx, bot)
		return result
	}

	if t == nil {
		m.mu.Unlock()
		return OfferResult{Outcome: OfferIgnored}
	}

	if t.key != filename {
		delete(m.ongoing, t.key)
		m.logger.Info("task rekeyed to offered filename",
			logging.String(logging.FieldEventType, "download_rekeyed"),
			logging.String("previous", t.key),
			logging.Filename(filename),
		)
		t.key = filename
		m.ongoing[filename] = t
	}
	t.observed = filename
	t.address = addr
	if size > 0 {
		t.size = size
	}
	t.status = StatusConnected
	t.updated = m.now()
	snap := t.snapshot()
	m.mu.Unlock()

	m.logger.Info("offer accepted",
		logging.String(logging.FieldEventType, "offer_accepted"),
		logging.String(logging.FieldTaskID, snap.ID),
		logging.Bot(bot),
		logging.Filename(filename),
		logging.Int64("size", size),
	)
	return OfferResult{Outcome: OfferConnect, Task: snap, Matched: true}
}

// ConnectCallback marks the matching task connected.
func (m *Manager) ConnectCallback(bot, filename, addr string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.lookupLocked(bot, filename)
	if t == nil {
		return Task{}, false
	}
	if t.status == StatusRequested {
		t.status = StatusConnected
	}
	if addr != "" {
		t.address = addr
	}
	t.updated = m.now()
	return t.snapshot(), true
}

// RecvCompleteCallback finishes the matching task as complete and returns it
// with its recorded size.
func (m *Manager) RecvCompleteCallback(filename, localPath string) (Task, bool) {
	m.mu.Lock()
	t := m.lookupLocked("", filename)
	if t == nil {
		m.mu.Unlock()
		m.logger.Debug("completion for unmanaged file ignored", logging.Filename(filename))
		return Task{}, false
	}
	t.localPath = localPath
	m.finishLocked(t, StatusComplete)
	snap := t.snapshot()
	m.mu.Unlock()

	m.logger.Info("download complete",
		logging.String(logging.FieldEventType, "download_complete"),
		logging.String(logging.FieldTaskID, snap.ID),
		logging.Filename(filename),
		logging.Int64("size", snap.Size),
	)
	return snap, true
}

// DownloadAbort finishes the matching task as aborted and cancels the
// transfer with the bot. Unknown filenames are a no-op.
func (m *Manager) DownloadAbort(ctx context.Context, bot, filename string) (Task, bool) {
	m.mu.Lock()
	t := m.lookupLocked(bot, filename)
	if t == nil {
		m.mu.Unlock()
		m.logger.Debug("abort for unmanaged file ignored", logging.Bot(bot), logging.Filename(filename))
		return Task{}, false
	}
	m.finishLocked(t, StatusAborted)
	snap := t.snapshot()
	m.mu.Unlock()

	if bot == "" {
		bot = snap.BotName
	}
	m.logger.Info("download aborted",
		logging.String(logging.FieldEventType, "download_aborted"),
		logging.String(logging.FieldTaskID, snap.ID),
		logging.Bot(bot),
		logging.Filename(filename),
	)
	m.sendCancel(ctx, bot)
	return snap, true
}

// RequestList asks bot to send its packlist. At most one list request is
// outstanding; a second call returns the existing task. List requests do
// not take a slot.
func (m *Manager) RequestList(ctx context.Context, bot, label string) (Task, error) {
	m.mu.Lock()
	if m.listTask != nil {
		snap := m.listTask.snapshot()
		m.mu.Unlock()
		return snap, nil
	}
	t := newTask(bot, packlist.Item{}, label, TypeListRequest, m.now())
	if _, taken := m.ongoing[t.key]; taken {
		m.mu.Unlock()
		return Task{}, fmt.Errorf("download: list label %q collides with an ongoing transfer", label)
	}
	t.status = StatusRequested
	m.listTask = t
	m.ongoing[t.key] = t
	snap := t.snapshot()
	m.mu.Unlock()

	if m.cmd == nil {
		m.abortList(t)
		return snap, fmt.Errorf("download: no commander configured")
	}
	if err := m.cmd.RequestList(ctx, bot); err != nil {
		m.abortList(t)
		return snap, fmt.Errorf("request list from %s: %w", bot, err)
	}
	m.logger.Info("packlist requested from bot",
		logging.String(logging.FieldEventType, "list_requested"),
		logging.Bot(bot),
	)
	return snap, nil
}

// CancelList aborts the outstanding list request, if any.
func (m *Manager) CancelList(ctx context.Context) (Task, bool) {
	m.mu.Lock()
	t := m.listTask
	if t == nil {
		m.mu.Unlock()
		return Task{}, false
	}
	m.finishLocked(t, StatusAborted)
	snap := t.snapshot()
	m.mu.Unlock()
	m.sendCancel(ctx, snap.BotName)
	return snap, true
}

func (m *Manager) abortList(t *task) {
	m.mu.Lock()
	m.finishLocked(t, StatusAborted)
	m.mu.Unlock()
}

func (m *Manager) sendCancel(ctx context.Context, bot string) {
	if m.cmd == nil || bot == "" {
		return
	}
	if err := m.cmd.Cancel(ctx, bot); err != nil {
		logging.WarnWithContext(m.logger, "cancel command failed", "cancel_failed",
			logging.Bot(bot),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the bot may keep the transfer slot open"),
			logging.String(logging.FieldErrorHint, "cancel the transfer from the chat client"),
		)
	}
}
