package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"autoxdcc/internal/download"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/notifications"
	"autoxdcc/internal/packlist"
	"autoxdcc/internal/services"
	"autoxdcc/internal/state"
)

// CycleResult summarizes one refresh cycle.
type CycleResult struct {
	Packlist string          `json:"packlist"`
	Parsed   int             `json:"parsed"`
	Accepted []packlist.Item `json:"accepted"`
	Cursor   int             `json:"cursor"`
}

// Refresh starts a refresh cycle for name on its own goroutine and returns
// immediately. Cycles of the same packlist queue up behind each other.
func (m *Manager) Refresh(name string) error {
	if _, err := m.Packlist(name); err != nil {
		return err
	}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("workflow: manager is shut down")
	}
	m.cycles.Add(1)
	m.mu.RUnlock()

	go func() {
		defer m.cycles.Done()
		if _, err := m.RefreshCycle(m.baseCtx, name); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Debug("refresh cycle ended with error", logging.Packlist(name), logging.Error(err))
		}
	}()
	return nil
}

// RefreshAll runs one cycle of every packlist concurrently and waits for
// them. A failing packlist does not cancel the others; the first error is
// returned.
func (m *Manager) RefreshAll(ctx context.Context) ([]CycleResult, error) {
	packlists := m.all()
	results := make([]CycleResult, len(packlists))
	var group errgroup.Group
	for i, pl := range packlists {
		group.Go(func() error {
			result, err := m.RefreshCycle(ctx, pl.name)
			results[i] = result
			return err
		})
	}
	return results, group.Wait()
}

// RefreshCycle fetches fresh content for name, queues every new eligible
// item and persists the advanced cursor. Fetch failures leave the cursor
// untouched and are returned.
func (m *Manager) RefreshCycle(ctx context.Context, name string) (CycleResult, error) {
	pl, err := m.Packlist(name)
	if err != nil {
		return CycleResult{}, err
	}
	pl.refreshMu.Lock()
	defer pl.refreshMu.Unlock()

	logger := m.logger.With(logging.Packlist(name))
	ctx = logging.WithPacklist(ctx, name)
	started := time.Now()
	result := CycleResult{Packlist: name, Cursor: pl.Cursor()}

	logger.Info("packlist check started", logging.String(logging.FieldEventType, "refresh_started"))

	lines, err := pl.source.FetchContent(ctx, pl.cfg.Current, true)
	if err != nil {
		m.refreshFailed(pl, started, err)
		return result, err
	}
	items := pl.grammar.ParseAll(lines)
	result.Parsed = len(items)

	subs, err := m.activeSubscriptions(ctx)
	if err != nil {
		m.refreshFailed(pl, started, err)
		return result, err
	}

	cursor := pl.Cursor()
	for _, item := range items {
		if pl.fromOtherBot(item) || item.PackNumber <= cursor {
			continue
		}
		cursor = item.PackNumber

		sub, ok := subs[item.ShowName]
		if !ok || !item.Eligible(sub) {
			continue
		}
		if !m.claim(item.Filename, name) {
			logger.Debug("item already in flight", logging.Filename(item.Filename))
			continue
		}
		pl.downloads.QueueDownload(pl.cfg.Current, item)
		result.Accepted = append(result.Accepted, item)
		logger.Info("queueing download",
			logging.String(logging.FieldEventType, "item_accepted"),
			logging.Filename(item.Filename),
			logging.String("label", item.Label()),
			logging.Int("pack", item.PackNumber),
		)
	}

	pl.downloads.Start()

	pl.setCursor(cursor)
	result.Cursor = cursor
	if err := m.persistCursor(ctx, name, cursor); err != nil {
		logging.WarnWithContext(logger, "cursor not persisted", "cursor_persist_failed",
			logging.Int("cursor", cursor),
			logging.Error(err),
			logging.String(logging.FieldImpact, "packs may be re-examined after a restart"),
			logging.String(logging.FieldErrorHint, "check state database access"),
		)
	}

	elapsed := time.Since(started)
	pl.noteRefresh(started, nil)
	m.metrics.ObserveRefresh(name, result.Parsed, elapsed, nil)
	logger.Info("packlist check finished",
		logging.String(logging.FieldEventType, "refresh_finished"),
		logging.Int("parsed", result.Parsed),
		logging.Int("accepted", len(result.Accepted)),
		logging.Int("cursor", cursor),
		logging.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (m *Manager) activeSubscriptions(ctx context.Context) (map[string]packlist.Subscription, error) {
	if m.store == nil {
		return map[string]packlist.Subscription{}, nil
	}
	subs, err := m.store.ActiveSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	return subs, nil
}

func (m *Manager) persistCursor(ctx context.Context, name string, cursor int) error {
	if m.store == nil {
		return nil
	}
	return m.store.SetCursor(context.WithoutCancel(ctx), name, cursor)
}

// refreshFailed logs a failed fetch. Transient failures only mean there is
// no data this cycle; anything else is pushed to the operator.
func (m *Manager) refreshFailed(pl *Packlist, started time.Time, err error) {
	pl.noteRefresh(started, err)
	m.metrics.ObserveRefresh(pl.name, 0, time.Since(started), err)
	if errors.Is(err, context.Canceled) {
		return
	}
	logging.WarnWithContext(m.logger, "packlist check failed", "refresh_failed",
		logging.Packlist(pl.name),
		logging.Error(err),
		logging.String(logging.FieldImpact, "no new packs were examined this cycle"),
		logging.String(logging.FieldErrorHint, "check the packlist url or bot name"),
	)
	if services.Retryable(err) {
		return
	}
	m.publish(notifications.EventPacklistError, notifications.Payload{
		"packlist": pl.name,
		"error":    err.Error(),
	})
}

// recordTask writes the task's current status to the download history.
func (m *Manager) recordTask(name string, task download.Task, reason string) {
	if task.ID == "" || task.Type == download.TypeListRequest {
		return
	}
	m.record(state.Download{
		ID:         task.ID,
		Packlist:   name,
		Bot:        task.BotName,
		Filename:   task.Filename(),
		Show:       task.Item.ShowName,
		Episode:    task.Item.Episode,
		PackNumber: task.Item.PackNumber,
		Size:       task.Size,
		Status:     string(task.Status),
		Error:      reason,
		CreatedAt:  task.CreatedAt,
	})
}
