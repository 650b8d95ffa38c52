package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"autoxdcc/internal/logging"
	"autoxdcc/internal/services"
	"autoxdcc/internal/testsupport"
	"autoxdcc/internal/transport"
	"autoxdcc/internal/workflow"
)

func TestBotTrustEditsApplyAndPersist(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	bots, err := f.mgr.TrustedBots(testPacklist)
	if err != nil || strings.Join(bots, ",") != "Bot" {
		t.Fatalf("TrustedBots = %v err=%v", bots, err)
	}

	changed, err := f.mgr.SetBotTrust(ctx, testPacklist, "Mallory", true)
	if err != nil || !changed {
		t.Fatalf("SetBotTrust(add): changed=%v err=%v", changed, err)
	}
	if changed, _ := f.mgr.SetBotTrust(ctx, testPacklist, "mallory", true); changed {
		t.Fatal("expected repeated add to leave the set unchanged")
	}

	testsupport.AddShow(t, f.store, "Foo", 5, 1080, "")
	item := foo(2, 6, 1080)
	f.server.set(lines(item)...)
	f.refresh(t, testPacklist)
	f.drain(t, 1)

	result, err := f.mgr.HandleOffer(ctx, transport.Offer{Bot: "Mallory", Filename: item.Filename, Size: 10})
	if err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}
	if result.Action != workflow.ActionAccept {
		t.Fatalf("expected offer from added bot to be accepted, got %+v", result)
	}

	if changed, err := f.mgr.SetBotTrust(ctx, testPacklist, "bot", false); err != nil || !changed {
		t.Fatalf("SetBotTrust(remove): changed=%v err=%v", changed, err)
	}

	restarted := workflow.NewManagerWithNotifier(f.cfg, f.store, transport.NewOutbox(0, 0, nil), logging.NewNop(), &recordingNotifier{})
	t.Cleanup(func() { _ = restarted.Shutdown(context.Background()) })
	if err := restarted.RegisterPacklists(ctx); err != nil {
		t.Fatalf("RegisterPacklists: %v", err)
	}
	bots, err = restarted.TrustedBots(testPacklist)
	if err != nil || strings.Join(bots, ",") != "mallory" {
		t.Fatalf("expected stored edits after restart, got %v err=%v", bots, err)
	}
	pl, err := restarted.Packlist(testPacklist)
	if err != nil {
		t.Fatal(err)
	}
	if pl.Trusts("Bot") || !pl.Trusts("MALLORY") {
		t.Fatal("expected restored trust set to drive offer checks")
	}
}

func TestBotTrustRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.mgr.TrustedBots("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.mgr.SetBotTrust(ctx, "missing", "Bot", true); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.mgr.SetBotTrust(ctx, testPacklist, "  ", true); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequestPackQueuesSend(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.mgr.RequestPack(ctx, "Other", 7); err != nil {
		t.Fatalf("RequestPack: %v", err)
	}
	cmd := f.drain(t, 1)[0]
	if cmd.Kind != transport.CommandSend || cmd.Bot != "Other" || cmd.Pack != 7 || cmd.Text != "MSG Other XDCC SEND 7" {
		t.Fatalf("unexpected command %+v", cmd)
	}

	tests := []struct {
		name string
		bot  string
		pack int
	}{
		{name: "empty bot", bot: " ", pack: 1},
		{name: "zero pack", bot: "Other", pack: 0},
		{name: "negative pack", bot: "Other", pack: -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.mgr.RequestPack(ctx, tt.bot, tt.pack); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
