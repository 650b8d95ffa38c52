package workflow

import (
	"context"
	"time"

	"autoxdcc/internal/download"
	"autoxdcc/internal/logging"
)

// PacklistStatus is a point-in-time view of one packlist.
type PacklistStatus struct {
	Name            string          `json:"name"`
	Source          string          `json:"source"`
	Bot             string          `json:"bot"`
	Cursor          int             `json:"cursor"`
	RefreshInterval time.Duration   `json:"refresh_interval"`
	TimerActive     bool            `json:"timer_active"`
	Worker          string          `json:"worker"`
	MaxConcurrent   int             `json:"max_concurrent"`
	Ongoing         int             `json:"ongoing"`
	Awaiting        int             `json:"awaiting"`
	LastRefresh     time.Time       `json:"last_refresh,omitzero"`
	LastError       string          `json:"last_error,omitempty"`
	Tasks           []download.Task `json:"tasks,omitempty"`
}

// StatusSummary describes every packlist and the in-flight set.
type StatusSummary struct {
	Packlists []PacklistStatus `json:"packlists"`
	InFlight  int              `json:"in_flight"`
}

// Status returns the latest information about every packlist.
func (m *Manager) Status() StatusSummary {
	packlists := m.all()
	summary := StatusSummary{Packlists: make([]PacklistStatus, 0, len(packlists))}
	for _, pl := range packlists {
		summary.Packlists = append(summary.Packlists, pl.status())
	}
	m.inflightMu.Lock()
	summary.InFlight = len(m.inflight)
	m.inflightMu.Unlock()
	return summary
}

func (p *Packlist) status() PacklistStatus {
	p.mu.Lock()
	cursor := p.lastPack
	lastRefresh := p.lastRefresh
	lastErr := p.lastErr
	p.mu.Unlock()

	status := PacklistStatus{
		Name:            p.name,
		Source:          p.sourceKind(),
		Bot:             p.cfg.Current,
		Cursor:          cursor,
		RefreshInterval: p.timer.Interval(),
		TimerActive:     p.timer.Registered(),
		Worker:          p.downloads.State().String(),
		MaxConcurrent:   p.downloads.MaxConcurrent(),
		Ongoing:         p.downloads.CountOngoing(),
		Awaiting:        p.downloads.CountAwaiting(),
		LastRefresh:     lastRefresh,
		Tasks:           p.downloads.Snapshot(),
	}
	if lastErr != nil {
		status.LastError = lastErr.Error()
	}
	return status
}

// ResetPacklist sets the cursor of name back to zero so the whole list is
// examined on the next refresh.
func (m *Manager) ResetPacklist(ctx context.Context, name string) error {
	pl, err := m.Packlist(name)
	if err != nil {
		return err
	}
	pl.setCursor(0)
	if err := m.persistCursor(ctx, name, 0); err != nil {
		return err
	}
	m.logger.Info("packlist reset",
		logging.String(logging.FieldEventType, "packlist_reset"),
		logging.Packlist(name),
	)
	return nil
}

// RunPacklist schedules a single refresh of name shortly from now.
func (m *Manager) RunPacklist(name string) error {
	pl, err := m.Packlist(name)
	if err != nil {
		return err
	}
	pl.timer.TriggerOnce(runOnceDelay)
	m.logger.Info("packlist check scheduled",
		logging.String(logging.FieldEventType, "packlist_run"),
		logging.Packlist(name),
	)
	return nil
}

// SetRefresh turns the periodic refresh of name off, or re-enables it with
// interval when interval is positive (the current interval otherwise). It
// returns the interval in effect.
func (m *Manager) SetRefresh(name string, interval time.Duration, off bool) (time.Duration, error) {
	pl, err := m.Packlist(name)
	if err != nil {
		return 0, err
	}
	pl.timer.Unregister()
	if off {
		m.logger.Info("refresh timer disabled",
			logging.String(logging.FieldEventType, "refresh_timer_disabled"),
			logging.Packlist(name),
		)
		return 0, nil
	}
	if interval > 0 {
		pl.timer.SetInterval(interval)
	}
	active := pl.timer.Register()
	current := pl.timer.Interval()
	m.logger.Info("refresh timer enabled",
		logging.String(logging.FieldEventType, "refresh_timer_enabled"),
		logging.Packlist(name),
		logging.Duration("interval", current),
		logging.Bool("active", active),
	)
	if !active {
		return 0, nil
	}
	return current, nil
}

// PauseRefresh unregisters every refresh timer. Running cycles and
// transfers are left alone.
func (m *Manager) PauseRefresh() {
	for _, pl := range m.all() {
		pl.timer.Unregister()
	}
	m.logger.Info("refresh timers paused", logging.String(logging.FieldEventType, "refresh_paused"))
}

// ResumeRefresh registers every refresh timer again and returns how many
// are active. Packlists with a zero interval stay inactive.
func (m *Manager) ResumeRefresh() int {
	active := 0
	for _, pl := range m.all() {
		if pl.timer.Register() {
			active++
		}
	}
	m.logger.Info("refresh timers resumed",
		logging.String(logging.FieldEventType, "refresh_resumed"),
		logging.Int("active", active),
	)
	return active
}
