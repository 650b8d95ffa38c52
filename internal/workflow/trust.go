package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"autoxdcc/internal/config"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/services"
	"autoxdcc/internal/state"
)

// trustSet is the effective set of bots a packlist accepts files from,
// keyed by lower-cased nick.
type trustSet map[string]string

func newTrustSet(cfg config.Packlist, overrides []state.TrustOverride) trustSet {
	set := make(trustSet, len(cfg.Trusted))
	for _, nick := range cfg.Trusted {
		set.set(nick, true)
	}
	for _, o := range overrides {
		set.set(o.Nick, o.Trusted)
	}
	return set
}

func (s trustSet) set(nick string, trusted bool) bool {
	nick = strings.TrimSpace(nick)
	key := strings.ToLower(nick)
	if key == "" {
		return false
	}
	_, had := s[key]
	if trusted {
		s[key] = nick
	} else {
		delete(s, key)
	}
	return had != trusted
}

func (s trustSet) nicks() []string {
	out := make([]string, 0, len(s))
	for _, nick := range s {
		out = append(out, nick)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

// Trusts reports whether bot may send files for this packlist.
func (p *Packlist) Trusts(bot string) bool {
	p.trustMu.RLock()
	defer p.trustMu.RUnlock()
	_, ok := p.trusted[strings.ToLower(strings.TrimSpace(bot))]
	return ok
}

// TrustedBots lists the bots name accepts files from.
func (m *Manager) TrustedBots(name string) ([]string, error) {
	pl, err := m.Packlist(name)
	if err != nil {
		return nil, err
	}
	pl.trustMu.RLock()
	defer pl.trustMu.RUnlock()
	return pl.trusted.nicks(), nil
}

// SetBotTrust adds nick to, or removes it from, the trusted bots of name.
// The edit is stored and survives restarts. It reports whether the
// effective set changed.
func (m *Manager) SetBotTrust(ctx context.Context, name, nick string, trusted bool) (bool, error) {
	pl, err := m.Packlist(name)
	if err != nil {
		return false, err
	}
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return false, fmt.Errorf("%w: bot nick is required", services.ErrValidation)
	}
	if m.store != nil {
		if err := m.store.SetTrust(ctx, name, nick, trusted); err != nil {
			return false, fmt.Errorf("persist trust for %s: %w", name, err)
		}
	}
	pl.trustMu.Lock()
	changed := pl.trusted.set(nick, trusted)
	pl.trustMu.Unlock()

	event := "bot_trusted"
	if !trusted {
		event = "bot_untrusted"
	}
	m.logger.Info("trusted bots updated",
		logging.String(logging.FieldEventType, event),
		logging.Packlist(name),
		logging.Bot(nick),
		logging.Bool("changed", changed),
	)
	return changed, nil
}

// RequestPack asks bot for pack outside any packlist. The transfer is not
// tracked by a scheduler.
func (m *Manager) RequestPack(ctx context.Context, bot string, pack int) error {
	bot = strings.TrimSpace(bot)
	if bot == "" {
		return fmt.Errorf("%w: bot nick is required", services.ErrValidation)
	}
	if pack <= 0 {
		return fmt.Errorf("%w: pack number must be positive, got %d", services.ErrValidation, pack)
	}
	if err := m.cmd.RequestPack(ctx, bot, pack); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "request pack",
			fmt.Sprintf("bot %s pack %d", bot, pack), err)
	}
	m.logger.Info("manual pack requested",
		logging.String(logging.FieldEventType, "manual_request"),
		logging.Bot(bot),
		logging.Int("pack", pack),
	)
	return nil
}
