package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"autoxdcc/internal/config"
	"autoxdcc/internal/daemon"
	"autoxdcc/internal/ipc"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/metrics"
	"autoxdcc/internal/packlist"
	"autoxdcc/internal/testsupport"
	"autoxdcc/internal/transport"
	"autoxdcc/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	body := packlist.Render(packlist.NewItem(1, "350M", "G", "Foo", 1, 0, 1080, "mkv")) + "\n"
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(source.Close)
	return testsupport.NewConfig(t, testsupport.WithPacklist("horrible", config.Packlist{
		URL:                    source.URL,
		Current:                "Bot",
		Trusted:                []string{"Bot"},
		RefreshInterval:        3600,
		MaxConcurrentDownloads: 1,
		MetaType:               []string{config.MetaText},
	}))
}

// setupCLIConfig writes cfg to disk so commands that load the config file
// see the same directories as the in-process daemon.
func setupCLIConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	onDisk := *cfg
	onDisk.Transport.CommandsPerSecond = 100
	data, err := toml.Marshal(onDisk)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := newTestConfig(t)
	configPath := setupCLIConfig(t, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	outbox := transport.NewOutbox(0, 0, logger)
	wf := workflow.NewManager(cfg, store, outbox, logger)
	d, err := daemon.New(cfg, store, logger, wf, outbox, metrics.New())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		_ = d.Close()
		if errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
			t.Skipf("unix sockets unavailable: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
