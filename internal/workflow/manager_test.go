package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"autoxdcc/internal/config"
	"autoxdcc/internal/download"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/notifications"
	"autoxdcc/internal/packlist"
	"autoxdcc/internal/services"
	"autoxdcc/internal/testsupport"
	"autoxdcc/internal/transport"
	"autoxdcc/internal/workflow"
)

func TestRefreshCycleQueuesEligibleItems(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")
	f.server.set(lines(foo(1, 5, 1080), foo(2, 6, 1080), foo(3, 6, 720), bar(4, 1))...)

	result := f.refresh(t, testPacklist)
	if result.Parsed != 4 {
		t.Fatalf("expected 4 parsed items, got %d", result.Parsed)
	}
	if len(result.Accepted) != 1 || result.Accepted[0] != foo(2, 6, 1080) {
		t.Fatalf("unexpected accepted items %+v", result.Accepted)
	}
	if result.Cursor != 4 {
		t.Fatalf("expected cursor 4, got %d", result.Cursor)
	}
	cursor, ok, err := f.store.Cursor(context.Background(), testPacklist)
	if err != nil || !ok || cursor != 4 {
		t.Fatalf("expected persisted cursor 4, got %d ok=%v err=%v", cursor, ok, err)
	}

	cmd := f.drain(t, 1)[0]
	if cmd.Kind != transport.CommandSend || cmd.Bot != "Bot" || cmd.Pack != 2 {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if got := f.mgr.InFlight()[foo(2, 6, 1080).Filename]; got != testPacklist {
		t.Fatalf("expected in-flight entry for %s, got %q", testPacklist, got)
	}
}

func TestRefreshCycleSkipsSeenPacks(t *testing.T) {
	f := newFixture(t, nil)
	f.server.set(lines(foo(1, 6, 1080), foo(2, 7, 1080))...)
	f.refresh(t, testPacklist)

	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")
	f.server.set(lines(foo(1, 6, 1080), foo(2, 7, 1080), foo(3, 8, 1080))...)
	result := f.refresh(t, testPacklist)
	if len(result.Accepted) != 1 || result.Accepted[0].PackNumber != 3 {
		t.Fatalf("expected only pack 3 past the cursor, got %+v", result.Accepted)
	}
}

func TestRefreshCycleDeduplicatesAcrossCyclesAndPacklists(t *testing.T) {
	mirror := newPacklistServer(t)
	f := newFixture(t, map[string]config.Packlist{"mirror": httpPacklist(mirror.URL)})

	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")
	content := lines(foo(2, 6, 1080))
	f.server.set(content...)
	mirror.set(content...)

	if got := f.refresh(t, testPacklist); len(got.Accepted) != 1 {
		t.Fatalf("expected first cycle to queue the episode, got %+v", got.Accepted)
	}
	if got := f.refresh(t, "mirror"); len(got.Accepted) != 0 {
		t.Fatalf("expected the mirror to skip an in-flight file, got %+v", got.Accepted)
	}
	if err := f.mgr.ResetPacklist(context.Background(), testPacklist); err != nil {
		t.Fatalf("ResetPacklist: %v", err)
	}
	if got := f.refresh(t, testPacklist); len(got.Accepted) != 0 {
		t.Fatalf("expected second cycle to skip an in-flight file, got %+v", got.Accepted)
	}

	f.drain(t, 1)
	extra, err := f.outbox.Drain(context.Background(), 0, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(extra) != 0 {
		t.Fatalf("expected a single request, got extra %+v", extra)
	}
	pl := f.packlist(t, testPacklist)
	if pl.Downloads().CountOngoing() != 1 || pl.Downloads().CountAwaiting() != 0 {
		t.Fatalf("expected one slot in use, got ongoing=%d awaiting=%d",
			pl.Downloads().CountOngoing(), pl.Downloads().CountAwaiting())
	}
}

func TestConcurrentRefreshCyclesQueueOnce(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.AddShow(t, f.store, "Foo", -1, 1080, "")
	f.server.set(lines(foo(1, 1, 1080), foo(2, 2, 1080))...)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.mgr.RefreshCycle(context.Background(), testPacklist)
			if err != nil {
				t.Errorf("RefreshCycle: %v", err)
				return
			}
			mu.Lock()
			accepted += len(result.Accepted)
			mu.Unlock()
		}()
	}
	wg.Wait()
	if accepted != 2 {
		t.Fatalf("expected both episodes queued exactly once, got %d", accepted)
	}
}

func TestRefreshCycleSkipsRecordsFromOtherBots(t *testing.T) {
	server := newPacklistServer(t,
		`p.k[1] = {b:"Bot", n:1, s:"350M", f:"[G] Foo - 06 [1080p].mkv"};`,
		`p.k[2] = {b:"Other", n:9, s:"350M", f:"[G] Foo - 07 [1080p].mkv"};`,
	)
	pl := httpPacklist(server.URL)
	pl.MetaType = []string{config.MetaJS}
	pl.JSONKeys = map[string]string{
		config.KeyBotName:    "b",
		config.KeyPackNumber: "n",
		config.KeySize:       "s",
		config.KeyFilename:   "f",
	}
	f := newFixtureWithConfig(t, testsupport.NewConfig(t, testsupport.WithPacklist(testPacklist, pl)), server)
	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")

	result := f.refresh(t, testPacklist)
	if result.Parsed != 2 {
		t.Fatalf("expected both records parsed, got %d", result.Parsed)
	}
	if len(result.Accepted) != 1 || result.Accepted[0].Episode != 6 {
		t.Fatalf("expected only the record from Bot, got %+v", result.Accepted)
	}
	if result.Cursor != 1 {
		t.Fatalf("expected other bot's pack numbers to leave the cursor alone, got %d", result.Cursor)
	}
}

func TestRefreshCycleFetchFailureKeepsCursor(t *testing.T) {
	f := newFixture(t, nil)
	f.server.set(lines(foo(3, 1, 1080))...)
	f.refresh(t, testPacklist)
	f.server.fail(http.StatusServiceUnavailable)

	_, err := f.mgr.RefreshCycle(context.Background(), testPacklist)
	if !errors.Is(err, services.ErrRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if cursor := f.packlist(t, testPacklist).Cursor(); cursor != 3 {
		t.Fatalf("expected cursor to stay at 3, got %d", cursor)
	}
	if _, ok := f.notifier.last(notifications.EventPacklistError); !ok {
		t.Fatal("expected packlist error notification")
	}
	status := f.mgr.Status()
	if len(status.Packlists) != 1 || status.Packlists[0].LastError == "" {
		t.Fatalf("expected last error in status, got %+v", status.Packlists)
	}
}

func TestCompleteMovesFileAndAdvancesSubscription(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "foo")
	item := foo(2, 6, 1080)
	f.server.set(lines(item)...)
	f.refresh(t, testPacklist)
	f.drain(t, 1)
	ctx := context.Background()

	offer, err := f.mgr.HandleOffer(ctx, transport.Offer{Bot: "Bot", Filename: item.Filename, Size: 2048, Address: "10.0.0.1"})
	if err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}
	if offer.Action != workflow.ActionAccept || offer.Status != download.StatusConnected {
		t.Fatalf("unexpected offer result %+v", offer)
	}

	received := filepath.Join(f.cfg.Paths.DownloadDir, item.Filename)
	testsupport.WriteFile(t, received, 2048)
	result, err := f.mgr.HandleComplete(ctx, transport.Complete{Filename: item.Filename, Bot: "Bot", Elapsed: time.Second})
	if err != nil {
		t.Fatalf("HandleComplete: %v", err)
	}
	want := filepath.Join(f.cfg.Paths.DownloadDir, "foo", item.Filename)
	if !result.Matched || result.Status != download.StatusComplete || result.Destination != want {
		t.Fatalf("unexpected completion %+v", result)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected file in subdirectory: %v", err)
	}
	if _, err := os.Stat(received); !os.IsNotExist(err) {
		t.Fatalf("expected file moved out of the download dir, stat err=%v", err)
	}

	show, err := f.store.Subscription(ctx, "Foo")
	if err != nil || show == nil || show.LastEpisode == nil || *show.LastEpisode != 6 {
		t.Fatalf("expected last episode 6, got %+v (err=%v)", show, err)
	}
	if f.packlist(t, testPacklist).Downloads().IsOngoing(item.Filename) {
		t.Fatal("expected task to be finished")
	}

	rows := f.history(t)
	if len(rows) != 1 || rows[0].Status != string(download.StatusComplete) || rows[0].Size != 2048 || rows[0].Episode != 6 {
		t.Fatalf("unexpected history %+v", rows)
	}
	payload, ok := f.notifier.last(notifications.EventDownloadCompleted)
	if !ok || payload["destination"] != want || payload["size"] == "" {
		t.Fatalf("unexpected completion notification %+v", payload)
	}
}

func TestFailedRewindsCursorAndForgetsFile(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")
	item := foo(2, 6, 1080)
	f.server.set(lines(item, bar(3, 1))...)
	if got := f.refresh(t, testPacklist); got.Cursor != 3 {
		t.Fatalf("expected cursor 3, got %d", got.Cursor)
	}
	f.drain(t, 1)
	ctx := context.Background()

	result, err := f.mgr.HandleFailed(ctx, transport.Failed{Filename: item.Filename, Bot: "Bot", Error: "connection refused"})
	if err != nil {
		t.Fatalf("HandleFailed: %v", err)
	}
	if !result.Matched || result.Status != download.StatusAborted || result.Cursor != 1 {
		t.Fatalf("unexpected failure result %+v", result)
	}
	if cursor, _, _ := f.store.Cursor(ctx, testPacklist); cursor != 1 {
		t.Fatalf("expected persisted cursor 1, got %d", cursor)
	}
	if n := len(f.mgr.InFlight()); n != 0 {
		t.Fatalf("expected in-flight set to forget the file, has %d entries", n)
	}
	if cmd := f.drain(t, 1)[0]; cmd.Kind != transport.CommandCancel {
		t.Fatalf("expected cancel command, got %+v", cmd)
	}
	payload, ok := f.notifier.last(notifications.EventDownloadFailed)
	if !ok || payload["reason"] != "connection refused" {
		t.Fatalf("unexpected failure notification %+v", payload)
	}
	rows := f.history(t)
	if len(rows) != 1 || rows[0].Status != string(download.StatusAborted) || rows[0].Error != "connection refused" {
		t.Fatalf("unexpected history %+v", rows)
	}

	again := f.refresh(t, testPacklist)
	if len(again.Accepted) != 1 || again.Accepted[0] != item {
		t.Fatalf("expected the failed pack to be queued again, got %+v", again.Accepted)
	}
}

func TestUntrustedOfferIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")
	item := foo(2, 6, 1080)
	f.server.set(lines(item)...)
	f.refresh(t, testPacklist)
	f.drain(t, 1)

	result, err := f.mgr.HandleOffer(context.Background(), transport.Offer{Bot: "Mallory", Filename: item.Filename, Size: 10})
	if err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}
	if result.Action != workflow.ActionReject || !result.Matched || result.Status != download.StatusAborted {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.packlist(t, testPacklist).Downloads().IsOngoing(item.Filename) {
		t.Fatal("expected the task to be aborted")
	}
	if cmd := f.drain(t, 1)[0]; cmd.Kind != transport.CommandCancel || cmd.Bot != "Mallory" {
		t.Fatalf("expected cancel toward the sender, got %+v", cmd)
	}
	payload, ok := f.notifier.last(notifications.EventUntrustedOffer)
	if !ok || payload["bot"] != "Mallory" {
		t.Fatalf("unexpected notification %+v", payload)
	}
	rows := f.history(t)
	if len(rows) != 1 || rows[0].ID != result.TaskID || !strings.Contains(rows[0].Error, "untrusted") {
		t.Fatalf("unexpected history %+v", rows)
	}
}

func TestVersionedOfferRoutesToQueuedTask(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")
	f.server.set(lines(foo(2, 6, 1080))...)
	f.refresh(t, testPacklist)
	f.drain(t, 1)
	ctx := context.Background()

	v2 := packlist.NewItem(2, "350M", "G", "Foo", 6, 2, 1080, "mkv").Filename
	if pl := f.mgr.PacklistBy(v2); pl == nil || pl.Name() != testPacklist {
		t.Fatalf("expected %s to route to %s", v2, testPacklist)
	}
	offer, err := f.mgr.HandleOffer(ctx, transport.Offer{Bot: "bot", Filename: v2, Size: 100})
	if err != nil || offer.Action != workflow.ActionAccept {
		t.Fatalf("expected versioned offer accepted, got %+v err=%v", offer, err)
	}

	testsupport.WriteFile(t, filepath.Join(f.cfg.Paths.DownloadDir, v2), 100)
	done, err := f.mgr.HandleComplete(ctx, transport.Complete{Filename: v2})
	if err != nil || !done.Matched || done.Status != download.StatusComplete {
		t.Fatalf("expected completion to match, got %+v err=%v", done, err)
	}
}

func TestStalledTransfers(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")
	item := foo(2, 6, 1080)
	f.server.set(lines(item)...)
	f.refresh(t, testPacklist)
	f.drain(t, 1)
	ctx := context.Background()

	sent, err := f.mgr.HandleStalled(ctx, transport.Stalled{Direction: transport.DirectionSend, Filename: item.Filename, Bot: "Bot"})
	if err != nil || sent.Matched {
		t.Fatalf("expected stalled send to be ignored, got %+v err=%v", sent, err)
	}
	if !f.packlist(t, testPacklist).Downloads().IsOngoing(item.Filename) {
		t.Fatal("expected task to survive a stalled send")
	}

	recv, err := f.mgr.HandleStalled(ctx, transport.Stalled{Direction: "recv", Filename: item.Filename, Bot: "Bot"})
	if err != nil || !recv.Matched || recv.Status != download.StatusAborted {
		t.Fatalf("expected stalled receive to abort, got %+v err=%v", recv, err)
	}
	payload, ok := f.notifier.last(notifications.EventDownloadFailed)
	if !ok || payload["reason"] != "transfer stalled" {
		t.Fatalf("unexpected notification %+v", payload)
	}
}

func TestUnmatchedEventsAreIgnored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	const stray = "[Other] Something - 01 [720p].mkv"

	if res, err := f.mgr.HandleOffer(ctx, transport.Offer{Bot: "Bot", Filename: stray}); err != nil || res.Matched || res.Action != workflow.ActionNone {
		t.Fatalf("offer: %+v err=%v", res, err)
	}
	if res, err := f.mgr.HandleConnect(ctx, transport.Connect{Bot: "Bot", Filename: stray}); err != nil || res.Matched {
		t.Fatalf("connect: %+v err=%v", res, err)
	}
	if res, err := f.mgr.HandleComplete(ctx, transport.Complete{Filename: stray}); err != nil || res.Matched {
		t.Fatalf("complete: %+v err=%v", res, err)
	}
	if res, err := f.mgr.HandleFailed(ctx, transport.Failed{Filename: stray}); err != nil || res.Matched {
		t.Fatalf("failed: %+v err=%v", res, err)
	}
	if _, err := f.mgr.HandleOffer(ctx, transport.Offer{Filename: stray}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for offer without bot, got %v", err)
	}
	if n := f.outbox.Pending(); n != 0 {
		t.Fatalf("expected no commands for stray events, got %d", n)
	}
}

func TestBotSourcedPacklist(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPacklist("botlist", config.Packlist{
		Current:                "Bot",
		Trusted:                []string{"Bot"},
		MaxConcurrentDownloads: 1,
		MetaType:               []string{config.MetaText},
	}))
	cfg.Transport.ListWaitTimeout = 5
	f := newFixtureWithConfig(t, cfg, nil)
	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")
	ctx := context.Background()

	type outcome struct {
		result workflow.CycleResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := f.mgr.RefreshCycle(ctx, "botlist")
		done <- outcome{result, err}
	}()

	if cmd := f.drain(t, 1)[0]; cmd.Kind != transport.CommandList || cmd.Bot != "Bot" {
		t.Fatalf("expected list request, got %+v", cmd)
	}
	const listName = "Bot_Packlist.txt"
	offer, err := f.mgr.HandleOffer(ctx, transport.Offer{Bot: "Bot", Filename: listName, Size: 64})
	if err != nil || offer.Action != workflow.ActionAccept {
		t.Fatalf("expected list offer accepted, got %+v err=%v", offer, err)
	}
	path := filepath.Join(cfg.Paths.DownloadDir, listName)
	testsupport.WriteLines(t, path, lines(foo(7, 6, 1080))...)
	if res, err := f.mgr.HandleComplete(ctx, transport.Complete{Filename: listName}); err != nil || !res.Matched {
		t.Fatalf("expected list completion to match, got %+v err=%v", res, err)
	}

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("RefreshCycle: %v", out.err)
		}
		if len(out.result.Accepted) != 1 || out.result.Cursor != 7 {
			t.Fatalf("unexpected cycle result %+v", out.result)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("refresh cycle did not finish")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected the received list to be removed, stat err=%v", err)
	}
	if cmd := f.drain(t, 1)[0]; cmd.Kind != transport.CommandSend || cmd.Pack != 7 {
		t.Fatalf("expected pack request, got %+v", cmd)
	}
	waitFor(t, "requested pack in history", func() bool { return len(f.history(t)) == 1 })
}

func TestConcurrentBotListsRouteBySender(t *testing.T) {
	botPacklist := func(bot string) config.Packlist {
		return config.Packlist{
			Current:                bot,
			Trusted:                []string{bot},
			MaxConcurrentDownloads: 1,
			MetaType:               []string{config.MetaText},
		}
	}
	cfg := testsupport.NewConfig(t,
		testsupport.WithPacklist("alpha", botPacklist("BotA")),
		testsupport.WithPacklist("beta", botPacklist("BotB")),
	)
	cfg.Transport.ListWaitTimeout = 5
	f := newFixtureWithConfig(t, cfg, nil)
	ctx := context.Background()

	type outcome struct {
		result workflow.CycleResult
		err    error
	}
	done := make(chan outcome, 2)
	for _, name := range []string{"alpha", "beta"} {
		go func() {
			result, err := f.mgr.RefreshCycle(ctx, name)
			done <- outcome{result, err}
		}()
	}
	for _, cmd := range f.drain(t, 2) {
		if cmd.Kind != transport.CommandList {
			t.Fatalf("expected list requests, got %+v", cmd)
		}
	}

	// Answer in reverse name order so a sender-blind route would pick alpha.
	for _, tc := range []struct {
		bot, packlist, file string
		pack                int
	}{
		{bot: "BotB", packlist: "beta", file: "BotB_Packlist.txt", pack: 9},
		{bot: "BotA", packlist: "alpha", file: "BotA_Packlist.txt", pack: 3},
	} {
		offer, err := f.mgr.HandleOffer(ctx, transport.Offer{Bot: tc.bot, Filename: tc.file, Size: 64})
		if err != nil {
			t.Fatalf("HandleOffer(%s): %v", tc.bot, err)
		}
		if offer.Action != workflow.ActionAccept || offer.Packlist != tc.packlist {
			t.Fatalf("offer from %s: expected accept on %s, got %+v", tc.bot, tc.packlist, offer)
		}
		testsupport.WriteLines(t, filepath.Join(cfg.Paths.DownloadDir, tc.file), lines(foo(tc.pack, 1, 1080))...)
		res, err := f.mgr.HandleComplete(ctx, transport.Complete{Filename: tc.file, Bot: tc.bot})
		if err != nil || !res.Matched || res.Packlist != tc.packlist {
			t.Fatalf("completion from %s: got %+v err=%v", tc.bot, res, err)
		}
	}

	cursors := map[string]int{}
	for range 2 {
		select {
		case out := <-done:
			if out.err != nil {
				t.Fatalf("RefreshCycle: %v", out.err)
			}
			cursors[out.result.Packlist] = out.result.Cursor
		case <-time.After(3 * time.Second):
			t.Fatal("refresh cycles did not finish")
		}
	}
	if cursors["alpha"] != 3 || cursors["beta"] != 9 {
		t.Fatalf("unexpected cursors %v", cursors)
	}
	cmds, err := f.outbox.Drain(ctx, 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(cmds) != 0 {
		t.Fatalf("expected no cancel commands, got %+v", cmds)
	}
}

func TestClearDownloadQueue(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")
	f.server.set(lines(foo(2, 6, 1080))...)
	f.refresh(t, testPacklist)

	if n := f.mgr.ClearDownloadQueue(); n != 1 {
		t.Fatalf("expected one cleared entry, got %d", n)
	}
	if n := len(f.mgr.InFlight()); n != 0 {
		t.Fatalf("expected empty in-flight set, got %d", n)
	}
	if err := f.mgr.ResetPacklist(context.Background(), testPacklist); err != nil {
		t.Fatalf("ResetPacklist: %v", err)
	}
	if got := f.refresh(t, testPacklist); len(got.Accepted) != 1 {
		t.Fatalf("expected the episode to be queued again after clearing, got %+v", got.Accepted)
	}
}

func TestRegisterPacklistsRestoresCursor(t *testing.T) {
	server := newPacklistServer(t)
	seeded := httpPacklist(server.URL)
	seeded.LastPack = 10
	cfg := testsupport.NewConfig(t,
		testsupport.WithPacklist("seeded", seeded),
		testsupport.WithPacklist("stored", httpPacklist(server.URL)),
	)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if err := store.SetCursor(ctx, "stored", 42); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}

	mgr := workflow.NewManagerWithNotifier(cfg, store, transport.NewOutbox(0, 0, nil), logging.NewNop(), &recordingNotifier{})
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })
	if err := mgr.RegisterPacklists(ctx); err != nil {
		t.Fatalf("RegisterPacklists: %v", err)
	}

	for name, want := range map[string]int{"seeded": 10, "stored": 42} {
		pl, err := mgr.Packlist(name)
		if err != nil {
			t.Fatalf("Packlist(%s): %v", name, err)
		}
		if pl.Cursor() != want {
			t.Fatalf("%s: expected cursor %d, got %d", name, want, pl.Cursor())
		}
	}
	if cursor, ok, _ := store.Cursor(ctx, "seeded"); !ok || cursor != 10 {
		t.Fatalf("expected config cursor to be persisted, got %d ok=%v", cursor, ok)
	}
	if err := mgr.RegisterPacklists(ctx); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected second registration to fail, got %v", err)
	}
}

func TestRegisterPacklistsRejectsIncompleteMapping(t *testing.T) {
	pl := httpPacklist("http://127.0.0.1:1/list")
	pl.MetaType = []string{config.MetaJS}
	pl.JSONKeys = map[string]string{config.KeyFilename: "f"}
	cfg := testsupport.NewConfig(t, testsupport.WithPacklist(testPacklist, pl))
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManagerWithNotifier(cfg, store, transport.NewOutbox(0, 0, nil), logging.NewNop(), &recordingNotifier{})
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })
	err := mgr.RegisterPacklists(context.Background())
	if !errors.Is(err, services.ErrConfiguration) || !errors.Is(err, packlist.ErrIncompleteMapping) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if names := mgr.Names(); len(names) != 0 {
		t.Fatalf("expected nothing registered, got %v", names)
	}
}

func TestOperatorOperations(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, err := range []error{
		f.mgr.RunPacklist("nope"),
		f.mgr.ResetPacklist(ctx, "nope"),
		f.mgr.Refresh("nope"),
	} {
		if !errors.Is(err, workflow.ErrUnknownPacklist) || !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected unknown packlist error, got %v", err)
		}
	}

	status := f.mgr.Status().Packlists[0]
	if status.Name != testPacklist || status.Source != "http" || status.Bot != "Bot" || status.MaxConcurrent != 2 || status.TimerActive {
		t.Fatalf("unexpected status %+v", status)
	}

	interval, err := f.mgr.SetRefresh(testPacklist, time.Hour, false)
	if err != nil || interval != time.Hour {
		t.Fatalf("SetRefresh: interval=%v err=%v", interval, err)
	}
	if !f.mgr.Status().Packlists[0].TimerActive {
		t.Fatal("expected timer to be active")
	}
	if _, err := f.mgr.SetRefresh(testPacklist, 0, true); err != nil {
		t.Fatalf("SetRefresh(off): %v", err)
	}
	if f.mgr.Status().Packlists[0].TimerActive {
		t.Fatal("expected timer to be disabled")
	}

	if err := f.mgr.RunPacklist(testPacklist); err != nil {
		t.Fatalf("RunPacklist: %v", err)
	}
	waitFor(t, "scheduled refresh", func() bool {
		f.server.mu.Lock()
		defer f.server.mu.Unlock()
		return f.server.hits > 0
	})
}

func TestRefreshAll(t *testing.T) {
	mirror := newPacklistServer(t, lines(bar(5, 2))...)
	f := newFixture(t, map[string]config.Packlist{"mirror": httpPacklist(mirror.URL)})
	testsupport.AddShow(t, f.store, "Bar", 1, 1080, "")
	f.server.set(lines(bar(2, 2))...)

	results, err := f.mgr.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	accepted := 0
	for _, result := range results {
		accepted += len(result.Accepted)
	}
	if accepted != 1 {
		t.Fatalf("expected the shared file queued once, got %d", accepted)
	}
}

func TestPauseAndResumeRefresh(t *testing.T) {
	mirror := newPacklistServer(t)
	periodic := httpPacklist(mirror.URL)
	periodic.RefreshInterval = 3600
	f := newFixture(t, map[string]config.Packlist{"mirror": periodic})

	timerActive := func(name string) bool {
		for _, pl := range f.mgr.Status().Packlists {
			if pl.Name == name {
				return pl.TimerActive
			}
		}
		t.Fatalf("packlist %s missing from status", name)
		return false
	}
	if !timerActive("mirror") || timerActive(testPacklist) {
		t.Fatal("expected only the mirror timer to be active after registration")
	}

	f.mgr.PauseRefresh()
	if timerActive("mirror") {
		t.Fatal("expected paused timer")
	}
	if active := f.mgr.ResumeRefresh(); active != 1 {
		t.Fatalf("expected one active timer, got %d", active)
	}
	if !timerActive("mirror") {
		t.Fatal("expected resumed timer")
	}
}
