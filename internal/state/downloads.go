package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Download is one row of transfer history.
type Download struct {
	ID         string    `json:"id"`
	Packlist   string    `json:"packlist"`
	Bot        string    `json:"bot"`
	Filename   string    `json:"filename"`
	Show       string    `json:"show,omitempty"`
	Episode    int       `json:"episode,omitempty"`
	PackNumber int       `json:"pack_number"`
	Size       int64     `json:"size"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const downloadColumns = "id, packlist, bot, filename, show, episode, pack_number, size, status, error, created_at, updated_at"

// RecordDownload inserts d or updates the row with the same ID. A row that
// already reached COMPLETE or ABORTED keeps its status and error.
func (s *Store) RecordDownload(ctx context.Context, d Download) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("record download: id is required")
	}
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO downloads (`+downloadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             filename = excluded.filename,
             size = CASE WHEN excluded.size > 0 THEN excluded.size ELSE downloads.size END,
             status = CASE WHEN downloads.status IN ('COMPLETE', 'ABORTED') THEN downloads.status ELSE excluded.status END,
             error = CASE WHEN downloads.status IN ('COMPLETE', 'ABORTED') THEN downloads.error ELSE excluded.error END,
             updated_at = excluded.updated_at`,
		d.ID,
		d.Packlist,
		d.Bot,
		d.Filename,
		nullableString(d.Show),
		nullableEpisode(d.Episode, d.Show),
		d.PackNumber,
		d.Size,
		d.Status,
		nullableString(d.Error),
		formatTime(d.CreatedAt),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

func nullableEpisode(episode int, show string) any {
	if show == "" {
		return nil
	}
	return episode
}

// ListDownloads returns the most recently updated history rows, newest
// first. An empty packlist lists every packlist; limit <= 0 means 50.
func (s *Store) ListDownloads(ctx context.Context, packlist string, limit int) ([]Download, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + downloadColumns + ` FROM downloads`
	args := []any{}
	if packlist = strings.TrimSpace(packlist); packlist != "" {
		query += ` WHERE packlist = ?`
		args = append(args, packlist)
	}
	query += ` ORDER BY updated_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var (
			d          Download
			show       sql.NullString
			episode    sql.NullInt64
			errMsg     sql.NullString
			createdRaw string
			updatedRaw string
		)
		if err := rows.Scan(&d.ID, &d.Packlist, &d.Bot, &d.Filename, &show, &episode,
			&d.PackNumber, &d.Size, &d.Status, &errMsg, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		d.Show = show.String
		d.Episode = int(episode.Int64)
		d.Error = errMsg.String
		if created, err := parseTimeString(createdRaw); err == nil {
			d.CreatedAt = created
		}
		if updated, err := parseTimeString(updatedRaw); err == nil {
			d.UpdatedAt = updated
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DownloadStats counts history rows by status.
func (s *Store) DownloadStats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM downloads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("download stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
