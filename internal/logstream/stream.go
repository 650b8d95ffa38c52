// Package logstream drives `axdcc logs`, paging the daemon log over IPC and
// optionally following it until the context ends.
package logstream

import (
	"context"
	"errors"
	"fmt"

	"autoxdcc/internal/ipc"
)

const followWaitMillis = 1000

// TailClient captures the IPC log tail contract.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error)
}

// Options controls stream behavior.
type Options struct {
	Lines  int
	Follow bool
	Match  string
}

// Stream emits log lines through onLine. It returns true when at least one
// line was emitted.
func Stream(ctx context.Context, client TailClient, opts Options, onLine func(string)) (bool, error) {
	if client == nil {
		return false, errors.New("log tail client missing")
	}

	limit := max(opts.Lines, 0)
	offset := int64(-1)
	if limit == 0 {
		offset = 0
	}

	printed := false
	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     opts.Follow,
			WaitMillis: followWaitMillis,
			Match:      opts.Match,
		})
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return printed, errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}
