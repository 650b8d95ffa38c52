package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"autoxdcc/internal/api"
	"autoxdcc/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the axdcc daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startDiagnostic),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			printStartState(stdout, result, "Daemon started")
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Force DEBUG logging tagged with a session id")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the axdcc daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.StopAcknowledged {
				fmt.Fprintln(stdout, "Pausing packlist checks...")
			}
			if result.Terminated && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the axdcc daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartDiagnostic),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.WasRunning {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			printStartState(stdout, result.Start, "Daemon restarted")
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Force DEBUG logging tagged with a session id")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, packlist and download status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, statusResp.DaemonStatus)
			}
			renderDaemonStatus(cmd.OutOrStdout(), statusResp.DaemonStatus, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printStartState(stdout io.Writer, result daemonctl.StartResult, started string) {
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(stdout, started)
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(stdout, "Daemon already running")
	case daemonctl.StartStateRequested:
		if message := strings.TrimSpace(result.Message); message != "" {
			fmt.Fprintln(stdout, message)
			return
		}
		fmt.Fprintln(stdout, "Start request sent")
	}
}

func renderDaemonStatus(out io.Writer, status api.DaemonStatus, colorize bool) {
	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range renderStatusLines(status.Checks, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Packlists", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(status.Workflow.Packlists) == 0 {
		fmt.Fprintln(out, "No packlists registered")
	} else {
		fmt.Fprint(out, renderTable(
			[]string{"Name", "Bot", "Cursor", "Timer", "Worker", "Downloads", "Last check", "Last error"},
			buildPacklistRows(status.Workflow.Packlists, time.Now()),
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		))
	}
	if status.PendingOutbox > 0 {
		fmt.Fprintf(out, "%d command(s) waiting for the chat client\n", status.PendingOutbox)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Downloads", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := buildCountRows(status.DownloadStats)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No downloads recorded")
		return
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func buildPacklistRows(packlists []api.PacklistStatus, now time.Time) [][]string {
	rows := make([][]string, 0, len(packlists))
	for _, pl := range packlists {
		timer := "off"
		if pl.TimerActive {
			timer = (time.Duration(pl.RefreshSeconds) * time.Second).String()
		}
		rows = append(rows, []string{
			pl.Name,
			pl.Bot,
			strconv.Itoa(pl.Cursor),
			timer,
			pl.Worker,
			fmt.Sprintf("%d/%d", pl.Ongoing, pl.MaxConcurrent),
			relativeTime(pl.LastRefresh, now),
			pl.LastError,
		})
	}
	return rows
}

// relativeTime renders an API timestamp as "3 minutes ago".
func relativeTime(value string, now time.Time) string {
	if strings.TrimSpace(value) == "" {
		return "never"
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return humanize.RelTime(parsed, now, "ago", "from now")
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, diagnostic bool) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{Diagnostic: diagnostic, ConfigPath: ctx.configPath()}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = strings.TrimSpace(*ctx.logLevelFlag)
	}
	return opts
}
