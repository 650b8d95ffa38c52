package download_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"autoxdcc/internal/download"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/packlist"
)

type recordedCommand struct {
	kind string
	bot  string
	pack int
}

type fakeCommander struct {
	mu       sync.Mutex
	commands []recordedCommand
	failPack bool
}

func (f *fakeCommander) record(kind, bot string, pack int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, recordedCommand{kind: kind, bot: bot, pack: pack})
}

func (f *fakeCommander) RequestPack(_ context.Context, bot string, pack int) error {
	f.mu.Lock()
	fail := f.failPack
	f.mu.Unlock()
	if fail {
		return errors.New("outbox closed")
	}
	f.record("send", bot, pack)
	return nil
}

func (f *fakeCommander) RequestList(_ context.Context, bot string) error {
	f.record("list", bot, 0)
	return nil
}

func (f *fakeCommander) Cancel(_ context.Context, bot string) error {
	f.record("cancel", bot, 0)
	return nil
}

func (f *fakeCommander) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, cmd := range f.commands {
		if cmd.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeCommander) packs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int
	for _, cmd := range f.commands {
		if cmd.kind == "send" {
			out = append(out, cmd.pack)
		}
	}
	return out
}

func newTestManager(t *testing.T, max int, cmd *fakeCommander) *download.Manager {
	t.Helper()
	m := download.NewManager(download.Options{
		Name:          "test",
		MaxConcurrent: max,
		Trusted:       func(bot string) bool { return bot == "Bot" },
		Commander:     cmd,
		IdleTimeout:   5 * time.Second,
		Logger:        logging.NewNop(),
	})
	t.Cleanup(func() {
		m.Terminate(true)
		m.Wait()
	})
	return m
}

func item(n int) packlist.Item {
	return packlist.NewItem(n, "350M", "G", "Foo", n, 0, 1080, "mkv")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func filename(n int) string {
	return fmt.Sprintf("[G] Foo - %02d [1080p].mkv", n)
}
