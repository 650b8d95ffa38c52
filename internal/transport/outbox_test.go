package transport_test

import (
	"context"
	"testing"
	"time"

	"autoxdcc/internal/logging"
	"autoxdcc/internal/transport"
)

func TestRenderCommands(t *testing.T) {
	tests := []struct {
		kind transport.CommandKind
		bot  string
		pack int
		want string
	}{
		{transport.CommandSend, "Bot|A", 12, "MSG Bot|A XDCC SEND 12"},
		{transport.CommandList, "Bot|A", 0, "MSG Bot|A XDCC SEND LIST"},
		{transport.CommandCancel, " Bot|A ", 0, "MSG Bot|A XDCC CANCEL"},
	}
	for _, tt := range tests {
		got, err := transport.Render(tt.kind, tt.bot, tt.pack)
		if err != nil {
			t.Fatalf("Render(%s): %v", tt.kind, err)
		}
		if got != tt.want {
			t.Fatalf("Render(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
	if _, err := transport.Render(transport.CommandSend, "", 1); err == nil {
		t.Fatal("expected error for empty bot")
	}
	if _, err := transport.Render(transport.CommandSend, "Bot", 0); err == nil {
		t.Fatal("expected error for pack 0")
	}
}

func TestOutboxDrainPreservesOrder(t *testing.T) {
	ctx := context.Background()
	box := transport.NewOutbox(0, 1, logging.NewNop())

	if err := box.RequestPack(ctx, "Bot", 3); err != nil {
		t.Fatalf("RequestPack: %v", err)
	}
	if err := box.RequestList(ctx, "Bot"); err != nil {
		t.Fatalf("RequestList: %v", err)
	}
	if err := box.Cancel(ctx, "Bot"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if box.Pending() != 3 {
		t.Fatalf("expected 3 pending, got %d", box.Pending())
	}

	first, err := box.Drain(ctx, 2, 0)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(first) != 2 || first[0].Kind != transport.CommandSend || first[1].Kind != transport.CommandList {
		t.Fatalf("unexpected first batch: %+v", first)
	}
	if first[0].Seq >= first[1].Seq {
		t.Fatalf("expected increasing sequence numbers: %+v", first)
	}
	rest, err := box.Drain(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(rest) != 1 || rest[0].Text != "MSG Bot XDCC CANCEL" {
		t.Fatalf("unexpected remainder: %+v", rest)
	}
}

func TestOutboxDrainWaitsForCommand(t *testing.T) {
	ctx := context.Background()
	box := transport.NewOutbox(0, 1, logging.NewNop())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = box.RequestPack(ctx, "Bot", 7)
	}()

	cmds, err := box.Drain(ctx, 0, 2*time.Second)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Pack != 7 {
		t.Fatalf("unexpected commands: %+v", cmds)
	}
}

func TestOutboxDrainTimesOutEmpty(t *testing.T) {
	box := transport.NewOutbox(0, 1, logging.NewNop())
	cmds, err := box.Drain(context.Background(), 0, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(cmds) != 0 {
		t.Fatalf("expected no commands, got %+v", cmds)
	}
}

func TestOutboxThrottleHonoursContext(t *testing.T) {
	box := transport.NewOutbox(0.001, 1, logging.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := box.RequestPack(ctx, "Bot", 1); err != nil {
		t.Fatalf("first command should use the burst: %v", err)
	}
	err := box.RequestPack(ctx, "Bot", 2)
	if err == nil {
		t.Fatal("expected throttled command to fail once the context expires")
	}
	if box.Pending() != 1 {
		t.Fatalf("expected only the first command queued, got %d", box.Pending())
	}
}

func TestStalledDirection(t *testing.T) {
	ev := transport.Stalled{Direction: "recv", Filename: "a.mkv"}
	if err := ev.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ev.Receiving() {
		t.Fatal("expected lowercase recv to count as receiving")
	}
	if err := (transport.Stalled{Direction: "sideways", Filename: "a"}).Validate(); err == nil {
		t.Fatal("expected unknown direction to fail validation")
	}
}
