package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"

	"autoxdcc/internal/packlist"
	"autoxdcc/internal/services"
)

// ErrAmbiguous is returned when a partial show name matches several shows.
var ErrAmbiguous = errors.New("ambiguous show name")

// Show is a persisted subscription.
type Show struct {
	Name         string    `json:"name"`
	LastEpisode  *int      `json:"last_episode,omitempty"`
	Resolution   int       `json:"resolution"`
	Subdirectory string    `json:"subdirectory,omitempty"`
	Archived     bool      `json:"archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Subscription converts the row into the value the eligibility rule reads.
func (s Show) Subscription() packlist.Subscription {
	return packlist.Subscription{
		ShowName:     s.Name,
		LastEpisode:  s.LastEpisode,
		Resolution:   s.Resolution,
		Subdirectory: s.Subdirectory,
		Archived:     s.Archived,
	}
}

const showColumns = "name, last_episode, resolution, subdirectory, archived, created_at, updated_at"

func scanShow(scanner interface{ Scan(dest ...any) error }) (*Show, error) {
	var (
		name        string
		lastEpisode sql.NullInt64
		resolution  int
		subdir      sql.NullString
		archived    int
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(&name, &lastEpisode, &resolution, &subdir, &archived, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	show := &Show{
		Name:         name,
		Resolution:   resolution,
		Subdirectory: subdir.String,
		Archived:     archived != 0,
	}
	if lastEpisode.Valid {
		ep := int(lastEpisode.Int64)
		show.LastEpisode = &ep
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		show.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		show.UpdatedAt = updated
	}
	return show, nil
}

// Subscription fetches a show by exact (case-insensitive) name. A missing
// show returns nil without error.
func (s *Store) Subscription(ctx context.Context, name string) (*Show, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+showColumns+` FROM subscriptions WHERE name = ?`, strings.TrimSpace(name))
	show, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return show, nil
}

// ListSubscriptions returns active or archived shows ordered by name.
func (s *Store) ListSubscriptions(ctx context.Context, archived bool) ([]Show, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+showColumns+` FROM subscriptions WHERE archived = ? ORDER BY name COLLATE NOCASE`,
		boolToInt(archived),
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var shows []Show
	for rows.Next() {
		show, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		shows = append(shows, *show)
	}
	return shows, rows.Err()
}

// ActiveSubscriptions returns the non-archived shows keyed by name.
func (s *Store) ActiveSubscriptions(ctx context.Context) (map[string]packlist.Subscription, error) {
	shows, err := s.ListSubscriptions(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]packlist.Subscription, len(shows))
	for _, show := range shows {
		out[show.Name] = show.Subscription()
	}
	return out, nil
}

func searchKey(value string) string {
	return strings.ReplaceAll(cases.Fold().String(value), " ", "")
}

// FindSubscriptions returns the shows matching query: an exact name wins,
// otherwise every show whose name contains query ignoring case and spaces.
func (s *Store) FindSubscriptions(ctx context.Context, query string, archived bool) ([]Show, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	shows, err := s.ListSubscriptions(ctx, archived)
	if err != nil {
		return nil, err
	}
	key := searchKey(query)
	var matches []Show
	for _, show := range shows {
		if show.Name == query {
			return []Show{show}, nil
		}
		if strings.Contains(searchKey(show.Name), key) {
			matches = append(matches, show)
		}
	}
	return matches, nil
}

// ResolveSubscription narrows query to exactly one show.
func (s *Store) ResolveSubscription(ctx context.Context, query string, archived bool) (*Show, error) {
	matches, err := s.FindSubscriptions(ctx, query, archived)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 1:
		return &matches[0], nil
	case 0:
		message := fmt.Sprintf("no show named %q", query)
		if suggestions, err := s.Suggest(ctx, query, archived, 3); err == nil && len(suggestions) > 0 {
			message += "; did you mean " + strings.Join(suggestions, ", ")
		}
		return nil, services.Wrap(services.ErrNotFound, "state", "resolve show", message, nil)
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return nil, fmt.Errorf("%w: %w: %q matches %s", services.ErrValidation, ErrAmbiguous, query, strings.Join(names, ", "))
	}
}

// Suggest ranks shows whose names contain the characters of query in order,
// closest first.
func (s *Store) Suggest(ctx context.Context, query string, archived bool, limit int) ([]string, error) {
	shows, err := s.ListSubscriptions(ctx, archived)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(shows))
	for i, show := range shows {
		names[i] = show.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(strings.ReplaceAll(query, " ", ""), names)
	sort.Sort(ranks)
	var out []string
	for _, rank := range ranks {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, rank.Target)
	}
	return out, nil
}

// PutSubscription inserts or replaces a show, keeping its creation time.
func (s *Store) PutSubscription(ctx context.Context, show Show) error {
	name := strings.TrimSpace(show.Name)
	if name == "" {
		return services.Wrap(services.ErrValidation, "state", "put show", "show name is required", nil)
	}
	if show.Resolution <= 0 {
		return services.Wrap(services.ErrValidation, "state", "put show", "resolution is required", nil)
	}
	now := formatTime(time.Now())
	_, err := s.execWithRetry(ctx,
		`INSERT INTO subscriptions (name, last_episode, resolution, subdirectory, archived, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET
             last_episode = excluded.last_episode,
             resolution = excluded.resolution,
             subdirectory = excluded.subdirectory,
             archived = excluded.archived,
             updated_at = excluded.updated_at`,
		name,
		nullableInt(show.LastEpisode),
		show.Resolution,
		nullableString(strings.TrimSpace(show.Subdirectory)),
		boolToInt(show.Archived),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("put subscription: %w", err)
	}
	return nil
}

// RemoveSubscription deletes a show and reports whether it existed.
func (s *Store) RemoveSubscription(ctx context.Context, name string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM subscriptions WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return false, fmt.Errorf("remove subscription: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetArchived moves a show in or out of the archive.
func (s *Store) SetArchived(ctx context.Context, name string, archived bool) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE subscriptions SET archived = ?, updated_at = ? WHERE name = ?`,
		boolToInt(archived), formatTime(time.Now()), strings.TrimSpace(name),
	)
	if err != nil {
		return false, fmt.Errorf("archive subscription: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkEpisode records episode as the newest fetched one. It never lowers the
// stored value and reports whether a row changed.
func (s *Store) MarkEpisode(ctx context.Context, name string, episode int) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE subscriptions SET last_episode = ?, updated_at = ?
         WHERE name = ? AND (last_episode IS NULL OR last_episode < ?)`,
		episode, formatTime(time.Now()), strings.TrimSpace(name), episode,
	)
	if err != nil {
		return false, fmt.Errorf("mark episode: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
