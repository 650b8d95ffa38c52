package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"autoxdcc/internal/config"
	"autoxdcc/internal/daemon"
	"autoxdcc/internal/ipc"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/metrics"
	"autoxdcc/internal/state"
	"autoxdcc/internal/transport"
	"autoxdcc/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
}

// Run starts the axdcc daemon and blocks until ctx is canceled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("axdcc-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	if opts.Diagnostic {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if opts.Diagnostic {
		sessionID := uuid.NewString()
		logger = logger.With(logging.String(logging.FieldCorrelationID, sessionID))
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String("log_path", logPath),
		)
	}

	if err := ensureCurrentLogPointer(cfg.LogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", cfg.LogPath(), err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "axdcc-*.log", Exclude: []string{logPath}},
	)
	logConfigSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := state.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open state store", "state_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and free disk space"),
		)
		return err
	}

	m := metrics.New()
	outbox := transport.NewOutbox(cfg.Transport.CommandsPerSecond, cfg.Transport.CommandBurst, logger)
	wf := workflow.NewManager(cfg, store, outbox, logger, workflow.WithMetrics(m))

	d, err := daemon.New(cfg, store, logger, wf, outbox, m)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and state database access"),
			logging.String(logging.FieldImpact, "packlists will not be checked until the daemon is started"),
		)
	}
	if err := d.ServeAPI(signalCtx); err != nil {
		logging.WarnWithContext(logger, "http api unavailable", "api_start_failed",
			logging.Error(err),
			logging.String("bind", cfg.Paths.APIBind),
			logging.String(logging.FieldErrorHint, "check paths.api_bind for a free address"),
			logging.String(logging.FieldImpact, "status is only reachable over the unix socket"),
		)
	}

	<-signalCtx.Done()
	logger.Info("axdcc daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("packlists", strings.Join(cfg.PacklistNames(), ",")),
		logging.String("download_dir", cfg.Paths.DownloadDir),
		logging.String("state_dir", cfg.Paths.StateDir),
		logging.Bool("api_enabled", strings.TrimSpace(cfg.Paths.APIBind) != ""),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Float64("commands_per_second", cfg.Transport.CommandsPerSecond),
	)
}
