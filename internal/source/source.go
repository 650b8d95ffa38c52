package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"autoxdcc/internal/fileutil"
)

// Source yields the raw lines of one packlist.
type Source interface {
	// FetchContent returns the packlist lines. botHint names the bot the
	// packlist is served by; forceFresh bypasses the stored snapshot.
	FetchContent(ctx context.Context, botHint string, forceFresh bool) ([]string, error)
}

// readSnapshot returns the stored lines and whether a snapshot existed.
func readSnapshot(path string) ([]string, bool, error) {
	if strings.TrimSpace(path) == "" {
		return nil, false, nil
	}
	lines, err := fileutil.ReadLines(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return lines, true, nil
}

func writeSnapshot(path string, data []byte) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func removeQuietly(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
