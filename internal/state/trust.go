package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autoxdcc/internal/services"
)

// TrustOverride is an operator edit to a packlist's trusted bots. It wins
// over the configured list for its nick.
type TrustOverride struct {
	Nick    string `json:"nick"`
	Trusted bool   `json:"trusted"`
}

// TrustOverrides lists the stored overrides for a packlist ordered by nick.
func (s *Store) TrustOverrides(ctx context.Context, packlist string) ([]TrustOverride, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT nick, trusted FROM trust_overrides WHERE packlist = ? ORDER BY nick COLLATE NOCASE`, packlist)
	if err != nil {
		return nil, fmt.Errorf("list trust overrides: %w", err)
	}
	defer rows.Close()

	var out []TrustOverride
	for rows.Next() {
		var (
			o       TrustOverride
			trusted int
		)
		if err := rows.Scan(&o.Nick, &trusted); err != nil {
			return nil, fmt.Errorf("scan trust override: %w", err)
		}
		o.Trusted = trusted != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetTrust records whether nick may send files for packlist.
func (s *Store) SetTrust(ctx context.Context, packlist, nick string, trusted bool) error {
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return fmt.Errorf("%w: empty bot nick", services.ErrValidation)
	}
	flag := 0
	if trusted {
		flag = 1
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO trust_overrides (packlist, nick, trusted, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(packlist, nick) DO UPDATE SET nick = excluded.nick, trusted = excluded.trusted, updated_at = excluded.updated_at`,
		packlist, nick, flag, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set trust: %w", err)
	}
	return nil
}
