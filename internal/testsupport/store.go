package testsupport

import (
	"context"
	"testing"

	"autoxdcc/internal/config"
	"autoxdcc/internal/state"
)

// MustOpenStore opens a state.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *state.Store {
	t.Helper()

	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddShow subscribes to a show for tests. A negative lastEpisode leaves the
// show without a fetched episode.
func AddShow(t testing.TB, store *state.Store, name string, lastEpisode, resolution int, subdir string) state.Show {
	t.Helper()

	show := state.Show{Name: name, Resolution: resolution, Subdirectory: subdir}
	if lastEpisode >= 0 {
		ep := lastEpisode
		show.LastEpisode = &ep
	}
	if err := store.PutSubscription(context.Background(), show); err != nil {
		t.Fatalf("store.PutSubscription: %v", err)
	}
	return show
}
