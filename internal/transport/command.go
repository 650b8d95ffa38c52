package transport

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Commander issues XDCC requests toward bots.
type Commander interface {
	RequestPack(ctx context.Context, bot string, pack int) error
	RequestList(ctx context.Context, bot string) error
	Cancel(ctx context.Context, bot string) error
}

// CommandKind enumerates the requests the scheduler can make.
type CommandKind string

const (
	CommandSend   CommandKind = "send"
	CommandList   CommandKind = "list"
	CommandCancel CommandKind = "cancel"
)

// Command is one rendered request waiting for the host.
type Command struct {
	Seq      uint64      `json:"seq"`
	Kind     CommandKind `json:"kind"`
	Bot      string      `json:"bot"`
	Pack     int         `json:"pack,omitempty"`
	Text     string      `json:"text"`
	QueuedAt time.Time   `json:"queued_at"`
}

// Render produces the client command line for a request.
func Render(kind CommandKind, bot string, pack int) (string, error) {
	bot = strings.TrimSpace(bot)
	if bot == "" {
		return "", fmt.Errorf("transport: %s command needs a bot", kind)
	}
	switch kind {
	case CommandSend:
		if pack <= 0 {
			return "", fmt.Errorf("transport: invalid pack number %d", pack)
		}
		return fmt.Sprintf("MSG %s XDCC SEND %d", bot, pack), nil
	case CommandList:
		return fmt.Sprintf("MSG %s XDCC SEND LIST", bot), nil
	case CommandCancel:
		return fmt.Sprintf("MSG %s XDCC CANCEL", bot), nil
	default:
		return "", fmt.Errorf("transport: unknown command kind %q", kind)
	}
}
