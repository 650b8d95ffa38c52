package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Cursor returns the stored last pack number for a packlist and whether one
// was stored.
func (s *Store) Cursor(ctx context.Context, name string) (int, bool, error) {
	var lastPack int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT last_pack FROM packlist_cursors WHERE name = ?`, name,
	).Scan(&lastPack)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get cursor: %w", err)
	}
	return lastPack, true, nil
}

// SetCursor stores the last pack number for a packlist.
func (s *Store) SetCursor(ctx context.Context, name string, lastPack int) error {
	if lastPack < 0 {
		lastPack = 0
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO packlist_cursors (name, last_pack, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET last_pack = excluded.last_pack, updated_at = excluded.updated_at`,
		name, lastPack, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}
