package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"autoxdcc/internal/config"
	"autoxdcc/internal/download"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/metrics"
	"autoxdcc/internal/packlist"
	"autoxdcc/internal/services"
	"autoxdcc/internal/source"
	"autoxdcc/internal/state"
	"autoxdcc/internal/timer"
)

// Packlist is one watched catalogue with its source, grammar, scheduler and
// refresh timer.
type Packlist struct {
	name      string
	cfg       config.Packlist
	grammar   packlist.Grammar
	source    source.Source
	downloads *download.Manager
	timer     *timer.Timer

	// refreshMu serializes refresh cycles of this packlist.
	refreshMu sync.Mutex

	trustMu sync.RWMutex
	trusted trustSet

	mu          sync.Mutex
	lastPack    int
	lastRefresh time.Time
	lastErr     error
}

// Name returns the configured packlist name.
func (p *Packlist) Name() string { return p.name }

// Bot returns the bot packs are requested from.
func (p *Packlist) Bot() string { return p.cfg.Current }

// Downloads exposes the packlist's scheduler.
func (p *Packlist) Downloads() *download.Manager { return p.downloads }

// Cursor returns the highest pack number already processed.
func (p *Packlist) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPack
}

func (p *Packlist) setCursor(value int) {
	p.mu.Lock()
	p.lastPack = value
	p.mu.Unlock()
}

// rewind moves the cursor back before pack when it already covers it. It
// reports the new cursor and whether it changed.
func (p *Packlist) rewind(pack int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pack <= 0 || p.lastPack < pack {
		return p.lastPack, false
	}
	p.lastPack = pack - 1
	return p.lastPack, true
}

func (p *Packlist) noteRefresh(at time.Time, err error) {
	p.mu.Lock()
	p.lastRefresh = at
	p.lastErr = err
	p.mu.Unlock()
}

func (p *Packlist) sourceKind() string {
	if p.cfg.UsesHTTP() {
		return "http"
	}
	return "bot"
}

// fromOtherBot reports whether a record names a bot other than the one this
// packlist requests from. Text lines carry no bot and always belong.
func (p *Packlist) fromOtherBot(item packlist.Item) bool {
	if item.BotName == "" || strings.TrimSpace(p.cfg.Current) == "" {
		return false
	}
	return !strings.EqualFold(item.BotName, strings.TrimSpace(p.cfg.Current))
}

func grammarFor(pl config.Packlist) (packlist.Grammar, error) {
	if pl.GrammarKind() != config.MetaJS {
		return packlist.NewGrammar(packlist.GrammarText, packlist.FieldMapping{})
	}
	return packlist.NewGrammar(packlist.GrammarRecord, packlist.FieldMapping{
		BotName:    pl.JSONKeys[config.KeyBotName],
		PackNumber: pl.JSONKeys[config.KeyPackNumber],
		Size:       pl.JSONKeys[config.KeySize],
		Filename:   pl.JSONKeys[config.KeyFilename],
	})
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

// RegisterPacklists builds every configured packlist, restores its cursor
// from the state store and registers its refresh timer. A packlist whose
// grammar cannot be built fails the whole registration.
func (m *Manager) RegisterPacklists(ctx context.Context) error {
	if m.isClosed() {
		return fmt.Errorf("workflow: manager is shut down")
	}
	names := m.cfg.PacklistNames()
	built := make([]*Packlist, 0, len(names))
	for _, name := range names {
		m.mu.RLock()
		_, exists := m.packlists[name]
		m.mu.RUnlock()
		if exists {
			return services.Wrap(services.ErrConfiguration, "workflow", "register packlist",
				fmt.Sprintf("packlist %q already registered", name), nil)
		}
		pl, err := m.buildPacklist(ctx, name, m.cfg.Packlists[name])
		if err != nil {
			return err
		}
		built = append(built, pl)
	}

	m.mu.Lock()
	for _, pl := range built {
		m.packlists[pl.name] = pl
	}
	m.mu.Unlock()

	for _, pl := range built {
		m.metrics.RegisterPacklist(pl.name, metrics.PacklistGauges{
			Ongoing:  pl.downloads.CountOngoing,
			Awaiting: pl.downloads.CountAwaiting,
			Cursor:   pl.Cursor,
		})
		active := pl.timer.Register()
		m.logger.Info("packlist registered",
			logging.String(logging.FieldEventType, "packlist_registered"),
			logging.Packlist(pl.name),
			logging.Bot(pl.cfg.Current),
			logging.String("source", pl.sourceKind()),
			logging.Int("cursor", pl.Cursor()),
			logging.Duration("refresh_interval", pl.timer.Interval()),
			logging.Bool("timer_active", active),
		)
	}
	return nil
}

func (m *Manager) buildPacklist(ctx context.Context, name string, cfg config.Packlist) (*Packlist, error) {
	grammar, err := grammarFor(cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "register packlist",
			fmt.Sprintf("packlist %q", name), err)
	}

	cursor := cfg.LastPack
	if m.store != nil {
		stored, ok, err := m.store.Cursor(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load cursor for %s: %w", name, err)
		}
		if ok {
			cursor = stored
		} else if err := m.store.SetCursor(ctx, name, cursor); err != nil {
			return nil, fmt.Errorf("seed cursor for %s: %w", name, err)
		}
	}

	var overrides []state.TrustOverride
	if m.store != nil {
		overrides, err = m.store.TrustOverrides(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load trusted bots for %s: %w", name, err)
		}
	}

	pl := &Packlist{
		name:     name,
		cfg:      cfg,
		grammar:  grammar,
		trusted:  newTrustSet(cfg, overrides),
		lastPack: cursor,
	}
	pl.downloads = download.NewManager(download.Options{
		Name:          name,
		MaxConcurrent: cfg.MaxConcurrentDownloads,
		Trusted:       pl.Trusts,
		Commander:     m.cmd,
		IdleTimeout:   seconds(m.cfg.Transport.IdleTimeout),
		ListMarker:    m.cfg.Transport.ListMarker,
		Logger:        m.logger,
		OnRequest:     func(task download.Task) { m.recordTask(name, task, "") },
	})

	snapshot := m.cfg.SnapshotPath(name)
	if cfg.UsesHTTP() {
		template, _ := cfg.QueryTemplate()
		pl.source = source.NewHTTP(source.HTTPOptions{
			URL:           cfg.URL,
			QueryTemplate: template,
			Timeout:       seconds(m.cfg.Transport.HTTPTimeout),
			Attempts:      m.cfg.Transport.HTTPAttempts,
			SnapshotPath:  snapshot,
			Logger:        m.logger,
		})
	} else {
		pl.source = source.NewBot(source.BotOptions{
			Name:         name,
			Requester:    pl.downloads,
			DownloadDir:  m.cfg.Paths.DownloadDir,
			SnapshotPath: snapshot,
			Timeout:      seconds(m.cfg.Transport.ListWaitTimeout),
			Logger:       m.logger,
		})
	}

	pl.timer = timer.New(seconds(cfg.RefreshInterval), func() bool {
		if m.isClosed() {
			return false
		}
		if err := m.Refresh(name); err != nil {
			m.logger.Debug("timer refresh skipped", logging.Packlist(name), logging.Error(err))
		}
		return true
	})
	return pl, nil
}
