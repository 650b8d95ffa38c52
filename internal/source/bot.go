package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"autoxdcc/internal/download"
	"autoxdcc/internal/fileutil"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/services"
)

const (
	defaultListWait   = 120 * time.Second
	cancelListTimeout = 5 * time.Second
)

// ListRequester issues and cancels packlist requests. download.Manager
// implements it.
type ListRequester interface {
	RequestList(ctx context.Context, bot, label string) (download.Task, error)
	CancelList(ctx context.Context) (download.Task, bool)
}

// BotOptions configures a Bot source.
type BotOptions struct {
	// Name labels the list request, usually the packlist name.
	Name         string
	Requester    ListRequester
	DownloadDir  string
	SnapshotPath string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Bot fetches a packlist by asking the bot to send it.
type Bot struct {
	name         string
	requester    ListRequester
	downloadDir  string
	snapshotPath string
	timeout      time.Duration
	logger       *slog.Logger
}

// NewBot builds a Bot source.
func NewBot(opts BotOptions) *Bot {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultListWait
	}
	return &Bot{
		name:         opts.Name,
		requester:    opts.Requester,
		downloadDir:  opts.DownloadDir,
		snapshotPath: opts.SnapshotPath,
		timeout:      timeout,
		logger:       logging.NewComponentLogger(opts.Logger, "source"),
	}
}

// FetchContent implements Source.
func (b *Bot) FetchContent(ctx context.Context, botHint string, forceFresh bool) ([]string, error) {
	if !forceFresh {
		if lines, ok, err := readSnapshot(b.snapshotPath); err == nil && ok {
			return lines, nil
		}
	}
	bot := strings.TrimSpace(botHint)
	if bot == "" {
		return nil, services.Wrap(services.ErrConfiguration, "source", "request list", "no bot to ask for the packlist", nil)
	}
	if b.requester == nil {
		return nil, services.Wrap(services.ErrConfiguration, "source", "request list", "no list requester", nil)
	}

	task, err := b.requester.RequestList(ctx, bot, b.name)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "source", "request list", bot, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	final, err := task.Wait(waitCtx)
	if err != nil {
		b.cancelList(ctx)
		logging.WarnWithContext(b.logger, "packlist not received from bot", "list_timeout",
			logging.Bot(bot),
			logging.Duration("waited", b.timeout),
			logging.String(logging.FieldImpact, "no new packs are queued this cycle"),
			logging.String(logging.FieldErrorHint, "check that the bot is online and the chat client accepts its offer"),
		)
		return nil, services.Wrap(services.ErrTimeout, "source", "wait for list", bot, err)
	}
	if final.Status != download.StatusComplete {
		return nil, services.Wrap(services.ErrRemote, "source", "wait for list",
			fmt.Sprintf("list transfer from %s ended %s", bot, final.Status), nil)
	}

	path := b.localPath(final)
	lines, err := fileutil.ReadLines(path)
	if err != nil {
		return nil, services.Wrap(services.ErrRemote, "source", "read list", path, err)
	}
	if err := writeSnapshot(b.snapshotPath, joinLines(lines)); err != nil {
		b.logger.Warn("packlist snapshot not saved",
			logging.Error(err),
			logging.String(logging.FieldEventType, "snapshot_write_failed"),
			logging.String(logging.FieldErrorHint, "check that state_dir is writable"),
		)
	}
	if err := removeQuietly(path); err != nil {
		b.logger.Debug("transient packlist file not removed", logging.String("path", path), logging.Error(err))
	}
	return lines, nil
}

func (b *Bot) localPath(task download.Task) string {
	if strings.TrimSpace(task.LocalPath) != "" {
		return task.LocalPath
	}
	name := task.ObservedFilename
	if name == "" {
		name = task.Key
	}
	return filepath.Join(b.downloadDir, name)
}

func (b *Bot) cancelList(ctx context.Context) {
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelListTimeout)
	defer cancel()
	b.requester.CancelList(cancelCtx)
}
