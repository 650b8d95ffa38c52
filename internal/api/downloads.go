package api

import (
	"context"

	"autoxdcc/internal/state"
)

// HistoryReader abstracts the download history queries.
type HistoryReader interface {
	ListDownloads(ctx context.Context, packlist string, limit int) ([]state.Download, error)
	DownloadStats(ctx context.Context) (map[string]int, error)
}

// DownloadService exposes read-only history operations.
type DownloadService struct {
	store HistoryReader
}

// NewDownloadService constructs a DownloadService around the provided reader.
func NewDownloadService(store HistoryReader) *DownloadService {
	if store == nil {
		return nil
	}
	return &DownloadService{store: store}
}

// History returns the newest rows, optionally for one packlist.
func (s *DownloadService) History(ctx context.Context, packlist string, limit int) ([]Download, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	rows, err := s.store.ListDownloads(ctx, packlist, limit)
	if err != nil {
		return nil, err
	}
	return FromDownloads(rows), nil
}

// Stats counts history rows by status.
func (s *DownloadService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return map[string]int{}, nil
	}
	return s.store.DownloadStats(ctx)
}
