package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"autoxdcc/internal/download"
	"autoxdcc/internal/fileutil"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/notifications"
	"autoxdcc/internal/packlist"
	"autoxdcc/internal/services"
	"autoxdcc/internal/state"
	"autoxdcc/internal/transport"
)

// Action tells the chat client what to do with an offer.
type Action string

const (
	// ActionNone leaves the event to the client's default handling.
	ActionNone Action = "none"
	// ActionAccept means the offer belongs to a request and should be received.
	ActionAccept Action = "accept"
	// ActionReject means the offer was refused and the transfer cancelled.
	ActionReject Action = "reject"
)

// EventResult reports how a transfer event was reconciled.
type EventResult struct {
	Matched     bool            `json:"matched"`
	Action      Action          `json:"action"`
	Packlist    string          `json:"packlist,omitempty"`
	TaskID      string          `json:"task_id,omitempty"`
	Status      download.Status `json:"status,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Cursor      int             `json:"cursor,omitempty"`
}

func unmatched() EventResult {
	return EventResult{Action: ActionNone}
}

func resultFor(pl *Packlist, task download.Task, action Action) EventResult {
	return EventResult{
		Matched:  true,
		Action:   action,
		Packlist: pl.name,
		TaskID:   task.ID,
		Status:   task.Status,
	}
}

func invalidEvent(op string, err error) error {
	return services.Wrap(services.ErrValidation, "workflow", op, "invalid event", err)
}

// PacklistBy finds the packlist that owns filename: an exact in-flight
// entry first, then any scheduler that still tracks the name (covers
// renamed files and list requests), then an in-flight entry for the same
// release under a different version tag.
func (m *Manager) PacklistBy(filename string) *Packlist {
	return m.PacklistFor("", filename)
}

// PacklistFor is PacklistBy for an event sent by bot. List files carry no
// packlist identity, so a list-marker name is routed to the packlist whose
// list request went to bot.
func (m *Manager) PacklistFor(bot, filename string) *Packlist {
	if filename == "" {
		return nil
	}
	m.inflightMu.Lock()
	name, ok := m.inflight[filename]
	m.inflightMu.Unlock()
	if ok {
		if pl, err := m.Packlist(name); err == nil {
			return pl
		}
	}

	for _, pl := range m.all() {
		if pl.downloads.IsOngoingFrom(bot, filename) {
			return pl
		}
	}

	m.inflightMu.Lock()
	name = ""
	for queued, owner := range m.inflight {
		if packlist.SameRelease(queued, filename) {
			name = owner
			break
		}
	}
	m.inflightMu.Unlock()
	if name == "" {
		return nil
	}
	pl, err := m.Packlist(name)
	if err != nil {
		return nil
	}
	return pl
}

// HandleOffer reconciles a DCC send offer. Offers for unknown files are
// left alone; offers from untrusted bots are refused and reported.
func (m *Manager) HandleOffer(ctx context.Context, ev transport.Offer) (EventResult, error) {
	if err := ev.Validate(); err != nil {
		return EventResult{}, invalidEvent("offer", err)
	}
	pl := m.PacklistFor(ev.Bot, ev.Filename)
	if pl == nil {
		m.logger.Warn("no matching request for offer",
			logging.String(logging.FieldEventType, "offer_unmatched"),
			logging.Bot(ev.Bot),
			logging.Filename(ev.Filename),
			logging.Int64("size", ev.Size),
		)
		return unmatched(), nil
	}

	offer := pl.downloads.SendOfferCallback(ctx, ev.Bot, ev.Filename, ev.Size, ev.Address)
	switch offer.Outcome {
	case download.OfferAbort:
		m.untrustedOffer(pl, ev, offer)
		result := resultFor(pl, offer.Task, ActionReject)
		result.Matched = offer.Matched
		return result, nil
	case download.OfferConnect:
		task := offer.Task
		if task.Type == download.TypeRegular {
			m.logger.Info("downloading",
				logging.String(logging.FieldEventType, "download_started"),
				logging.Packlist(pl.name),
				logging.String("label", task.Item.Label()),
				logging.String("size", packlist.HumanSize(ev.Size)),
				logging.Bot(ev.Bot),
			)
			m.recordTask(pl.name, task, "")
		}
		return resultFor(pl, task, ActionAccept), nil
	default:
		m.logger.Warn("no matching request for offer",
			logging.String(logging.FieldEventType, "offer_unmatched"),
			logging.Packlist(pl.name),
			logging.Bot(ev.Bot),
			logging.Filename(ev.Filename),
		)
		return unmatched(), nil
	}
}

func (m *Manager) untrustedOffer(pl *Packlist, ev transport.Offer, offer download.OfferResult) {
	m.metrics.UntrustedOffer(pl.name)
	reason := "untrusted bot " + ev.Bot

	entry := state.Download{
		ID:       uuid.NewString(),
		Packlist: pl.name,
		Bot:      ev.Bot,
		Filename: ev.Filename,
		Size:     ev.Size,
		Status:   string(download.StatusAborted),
		Error:    reason,
	}
	if offer.Matched && offer.Task.Type == download.TypeRegular {
		task := offer.Task
		entry.ID = task.ID
		entry.Show = task.Item.ShowName
		entry.Episode = task.Item.Episode
		entry.PackNumber = task.Item.PackNumber
		entry.CreatedAt = task.CreatedAt
		m.metrics.DownloadFinished(pl.name, string(download.StatusAborted), 0)
	}
	m.record(entry)
	m.publish(notifications.EventUntrustedOffer, notifications.Payload{
		"packlist": pl.name,
		"bot":      ev.Bot,
		"filename": ev.Filename,
	})
}

// HandleConnect marks the matching transfer connected.
func (m *Manager) HandleConnect(ctx context.Context, ev transport.Connect) (EventResult, error) {
	if err := ev.Validate(); err != nil {
		return EventResult{}, invalidEvent("connect", err)
	}
	pl := m.PacklistFor(ev.Bot, ev.Filename)
	if pl == nil {
		m.logger.Debug("connect for unmanaged file", logging.Bot(ev.Bot), logging.Filename(ev.Filename))
		return unmatched(), nil
	}
	task, ok := pl.downloads.ConnectCallback(ev.Bot, ev.Filename, ev.Address)
	if !ok {
		return unmatched(), nil
	}
	m.logger.Debug("transfer connected",
		logging.String(logging.FieldEventType, "download_connected"),
		logging.Packlist(pl.name),
		logging.Bot(ev.Bot),
		logging.String("address", ev.Address),
		logging.Filename(ev.Filename),
	)
	if task.Type == download.TypeRegular {
		m.recordTask(pl.name, task, "")
	}
	return resultFor(pl, task, ActionAccept), nil
}

// HandleComplete finishes the matching transfer. A regular download is moved
// into its show's subdirectory and bumps the subscription; a list request
// only wakes the waiting source.
func (m *Manager) HandleComplete(ctx context.Context, ev transport.Complete) (EventResult, error) {
	if err := ev.Validate(); err != nil {
		return EventResult{}, invalidEvent("complete", err)
	}
	pl := m.PacklistFor(ev.Bot, ev.Filename)
	if pl == nil || !pl.downloads.IsOngoingFrom(ev.Bot, ev.Filename) {
		m.logger.Warn("no match for completed file",
			logging.String(logging.FieldEventType, "complete_unmatched"),
			logging.Filename(ev.Filename),
		)
		return unmatched(), nil
	}

	received := strings.TrimSpace(ev.Destination)
	if received == "" {
		received = filepath.Join(m.cfg.Paths.DownloadDir, filepath.Base(ev.Filename))
	}
	task, ok := pl.downloads.RecvCompleteCallback(ev.Filename, received)
	if !ok {
		return unmatched(), nil
	}
	result := resultFor(pl, task, ActionNone)
	result.Destination = received
	if task.Type == download.TypeListRequest {
		return result, nil
	}

	result.Destination = m.fileCompleted(ctx, pl, task, received)
	m.recordTask(pl.name, task, "")
	m.metrics.DownloadFinished(pl.name, string(download.StatusComplete), task.Size)

	remaining := pl.downloads.CountAwaiting() + pl.downloads.CountOngoing()
	m.logger.Info("download complete",
		logging.String(logging.FieldEventType, "download_completed"),
		logging.Packlist(pl.name),
		logging.String("label", task.Item.Label()),
		logging.String("destination", result.Destination),
		logging.Duration("elapsed", ev.Elapsed),
		logging.Int("remaining", remaining),
	)
	payload := notifications.Payload{
		"packlist":    pl.name,
		"filename":    task.Filename(),
		"destination": result.Destination,
	}
	if task.Size > 0 {
		payload["size"] = packlist.HumanSize(task.Size)
	}
	m.publish(notifications.EventDownloadCompleted, payload)
	return result, nil
}

// fileCompleted moves the received file into the subscription's
// subdirectory and records the episode. It returns where the file ended up.
func (m *Manager) fileCompleted(ctx context.Context, pl *Packlist, task download.Task, received string) string {
	show := task.Item.ShowName
	if m.store == nil || show == "" {
		return received
	}
	logger := m.logger.With(logging.Packlist(pl.name), logging.String("show", show))

	sub, err := m.store.Subscription(ctx, show)
	if err != nil {
		logging.WarnWithContext(logger, "subscription lookup failed", "subscription_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the file stays in the download directory"),
			logging.String(logging.FieldErrorHint, "check state database access"),
		)
		return received
	}
	if sub == nil {
		return received
	}

	final := received
	if subdir := strings.TrimSpace(sub.Subdirectory); subdir != "" {
		target := filepath.Join(m.cfg.Paths.DownloadDir, subdir, filepath.Base(received))
		if err := fileutil.MoveFile(received, target); err != nil {
			impact := "the file stays in the download directory"
			if errors.Is(err, os.ErrNotExist) {
				impact = "the received file was not found"
			}
			logging.WarnWithContext(logger, "completed file not moved", "file_move_failed",
				logging.String("source", received),
				logging.String("target", target),
				logging.Error(err),
				logging.String(logging.FieldImpact, impact),
				logging.String(logging.FieldErrorHint, "check download directory permissions"),
			)
		} else {
			final = target
		}
	}

	raised, err := m.store.MarkEpisode(ctx, sub.Name, task.Item.Episode)
	if err != nil {
		logging.WarnWithContext(logger, "episode not recorded", "episode_update_failed",
			logging.Int("episode", task.Item.Episode),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the episode may be downloaded again"),
			logging.String(logging.FieldErrorHint, "check state database access"),
		)
	} else if raised {
		logger.Debug("subscription advanced", logging.Int("episode", task.Item.Episode))
	}
	return final
}

// HandleFailed aborts the matching transfer. For a pack the cursor is
// rewound so the next refresh offers it again, and the in-flight entry is
// dropped so it may be queued.
func (m *Manager) HandleFailed(ctx context.Context, ev transport.Failed) (EventResult, error) {
	if err := ev.Validate(); err != nil {
		return EventResult{}, invalidEvent("failed", err)
	}
	pl := m.PacklistFor(ev.Bot, ev.Filename)
	if pl == nil || !pl.downloads.IsOngoingFrom(ev.Bot, ev.Filename) {
		m.logger.Warn("no match for failed file",
			logging.String(logging.FieldEventType, "failed_unmatched"),
			logging.Bot(ev.Bot),
			logging.Filename(ev.Filename),
		)
		return unmatched(), nil
	}
	task, ok := pl.downloads.DownloadAbort(ctx, ev.Bot, ev.Filename)
	if !ok {
		return unmatched(), nil
	}
	result := resultFor(pl, task, ActionNone)
	result.Cursor = pl.Cursor()
	reason := strings.TrimSpace(ev.Error)
	if reason == "" {
		reason = "transfer failed"
	}
	if task.Type == download.TypeListRequest {
		m.logger.Warn("packlist transfer failed",
			logging.String(logging.FieldEventType, "list_failed"),
			logging.Packlist(pl.name),
			logging.Bot(ev.Bot),
			logging.String("reason", reason),
		)
		return result, nil
	}

	m.forget(task.Item.Filename)
	if cursor, rewound := pl.rewind(task.Item.PackNumber); rewound {
		result.Cursor = cursor
		if err := m.persistCursor(ctx, pl.name, cursor); err != nil {
			logging.WarnWithContext(m.logger, "cursor not persisted", "cursor_persist_failed",
				logging.Packlist(pl.name),
				logging.Int("cursor", cursor),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the failed pack is not retried after a restart"),
				logging.String(logging.FieldErrorHint, "check state database access"),
			)
		}
	}
	m.recordTask(pl.name, task, reason)
	m.metrics.DownloadFinished(pl.name, string(download.StatusAborted), 0)

	logging.ErrorWithContext(m.logger, "connection failed", "download_failed",
		logging.Packlist(pl.name),
		logging.Bot(ev.Bot),
		logging.Filename(ev.Filename),
		logging.String("reason", reason),
		logging.Int("cursor", result.Cursor),
		logging.String(logging.FieldImpact, "the pack will be requested again on the next refresh"),
		logging.String(logging.FieldErrorHint, "check firewall settings for incoming DCC connections"),
	)
	m.publish(notifications.EventDownloadFailed, notifications.Payload{
		"packlist": pl.name,
		"filename": task.Filename(),
		"bot":      ev.Bot,
		"reason":   reason,
	})
	return result, nil
}

// HandleStalled treats a stalled receive as a failure. Stalled sends are
// not ours and are ignored.
func (m *Manager) HandleStalled(ctx context.Context, ev transport.Stalled) (EventResult, error) {
	if err := ev.Validate(); err != nil {
		return EventResult{}, invalidEvent("stalled", err)
	}
	if !ev.Receiving() {
		return unmatched(), nil
	}
	return m.HandleFailed(ctx, transport.Failed{
		Filename: ev.Filename,
		Bot:      ev.Bot,
		Error:    "transfer stalled",
	})
}
