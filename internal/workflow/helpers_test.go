package workflow_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"autoxdcc/internal/config"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/notifications"
	"autoxdcc/internal/packlist"
	"autoxdcc/internal/state"
	"autoxdcc/internal/testsupport"
	"autoxdcc/internal/transport"
	"autoxdcc/internal/workflow"
)

const testPacklist = "horrible"

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingNotifier) last(event notifications.Event) (notifications.Payload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i] == event {
			return r.payloads[i], true
		}
	}
	return nil, false
}

type packlistServer struct {
	*httptest.Server

	mu     sync.Mutex
	lines  []string
	status int
	hits   int
}

func newPacklistServer(t *testing.T, lines ...string) *packlistServer {
	t.Helper()
	s := &packlistServer{lines: lines, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits++
		status := s.status
		body := strings.Join(s.lines, "\n") + "\n"
		s.mu.Unlock()
		if status != http.StatusOK {
			http.Error(w, "unavailable", status)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *packlistServer) set(lines ...string) {
	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()
}

func (s *packlistServer) fail(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

type fixture struct {
	cfg      *config.Config
	store    *state.Store
	outbox   *transport.Outbox
	notifier *recordingNotifier
	mgr      *workflow.Manager
	server   *packlistServer
}

func httpPacklist(url string) config.Packlist {
	return config.Packlist{
		URL:                    url,
		Current:                "Bot",
		Trusted:                []string{"Bot"},
		MaxConcurrentDownloads: 2,
		MetaType:               []string{config.MetaText},
	}
}

// newFixture registers one HTTP packlist served by a test server. extra
// packlists may be added by name.
func newFixture(t *testing.T, extra map[string]config.Packlist) *fixture {
	t.Helper()
	server := newPacklistServer(t)
	opts := []testsupport.ConfigOption{testsupport.WithPacklist(testPacklist, httpPacklist(server.URL))}
	for name, pl := range extra {
		opts = append(opts, testsupport.WithPacklist(name, pl))
	}
	cfg := testsupport.NewConfig(t, opts...)
	return newFixtureWithConfig(t, cfg, server)
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config, server *packlistServer) *fixture {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	outbox := transport.NewOutbox(0, 0, logging.NewNop())
	notifier := &recordingNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, outbox, logging.NewNop(), notifier)
	if err := mgr.RegisterPacklists(context.Background()); err != nil {
		t.Fatalf("RegisterPacklists: %v", err)
	}
	t.Cleanup(func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return &fixture{cfg: cfg, store: store, outbox: outbox, notifier: notifier, mgr: mgr, server: server}
}

func (f *fixture) refresh(t *testing.T, name string) workflow.CycleResult {
	t.Helper()
	result, err := f.mgr.RefreshCycle(context.Background(), name)
	if err != nil {
		t.Fatalf("RefreshCycle(%s): %v", name, err)
	}
	return result
}

// drain waits for n commands and returns them.
func (f *fixture) drain(t *testing.T, n int) []transport.Command {
	t.Helper()
	var out []transport.Command
	deadline := time.Now().Add(3 * time.Second)
	for len(out) < n && time.Now().Before(deadline) {
		cmds, err := f.outbox.Drain(context.Background(), n-len(out), 100*time.Millisecond)
		if err != nil {
			t.Fatalf("Drain: %v", err)
		}
		out = append(out, cmds...)
	}
	if len(out) != n {
		t.Fatalf("expected %d commands, got %d: %+v", n, len(out), out)
	}
	return out
}

func (f *fixture) packlist(t *testing.T, name string) *workflow.Packlist {
	t.Helper()
	pl, err := f.mgr.Packlist(name)
	if err != nil {
		t.Fatalf("Packlist(%s): %v", name, err)
	}
	return pl
}

func (f *fixture) history(t *testing.T) []state.Download {
	t.Helper()
	rows, err := f.store.ListDownloads(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("ListDownloads: %v", err)
	}
	return rows
}

func foo(pack, episode, resolution int) packlist.Item {
	return packlist.NewItem(pack, "350M", "G", "Foo", episode, 0, resolution, "mkv")
}

func bar(pack, episode int) packlist.Item {
	return packlist.NewItem(pack, "1.4G", "G", "Bar", episode, 0, 1080, "mkv")
}

func lines(items ...packlist.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, packlist.Render(item))
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
