package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestShowCommandsOnline(t *testing.T) {
	env := setupCLITestEnv(t)
	run := func(args ...string) string {
		t.Helper()
		out, _, err := runCLI(t, args, env.socketPath, env.configPath)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out
	}

	requireContains(t, run("show", "list"), "No shows")
	requireContains(t, run("show", "add", "Foo", "-e", "3", "-r", "720p"), "Foo:")

	out := run("show", "list")
	requireContains(t, out, "Foo")
	requireContains(t, out, "720p")

	requireContains(t, run("show", "update", "Foo", "-d", "anime"), "subdirectory anime")
	requireContains(t, run("show", "archive", "foo"), "Foo:")
	requireContains(t, run("show", "list", "--archived"), "Foo")
	requireContains(t, run("show", "restore", "foo"), "Foo:")
	requireContains(t, run("show", "remove", "foo"), "removed")

	if _, _, err := runCLI(t, []string{"show", "remove", "foo"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected second remove to fail")
	}
	if _, _, err := runCLI(t, []string{"show", "add", "Bar", "-r", "huge"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected invalid resolution to fail")
	}
}

func TestShowCommandsOffline(t *testing.T) {
	cfg := newTestConfig(t)
	configPath := setupCLIConfig(t, cfg)
	socket := filepath.Join(t.TempDir(), "missing.sock")

	if _, _, err := runCLI(t, []string{"show", "add", "Foo", "Bar", "-e", "7"}, socket, configPath); err != nil {
		t.Fatalf("offline add: %v", err)
	}
	out, _, err := runCLI(t, []string{"show", "list", "--json"}, socket, configPath)
	if err != nil {
		t.Fatalf("offline list: %v", err)
	}
	requireContains(t, out, `"Foo Bar"`)

	out, _, err = runCLI(t, []string{"download", "history"}, socket, configPath)
	if err != nil {
		t.Fatalf("offline history: %v", err)
	}
	if !strings.Contains(out, "No downloads recorded") {
		t.Fatalf("unexpected history output %q", out)
	}
}
