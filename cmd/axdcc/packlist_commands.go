package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"autoxdcc/internal/ipc"
)

func newPacklistCommand(ctx *commandContext) *cobra.Command {
	packlistCmd := &cobra.Command{
		Use:     "packlist",
		Aliases: []string{"pl"},
		Short:   "Inspect and control watched packlists",
	}

	packlistCmd.AddCommand(newPacklistListCommand(ctx))
	packlistCmd.AddCommand(newPacklistResetCommand(ctx))
	packlistCmd.AddCommand(newPacklistRunCommand(ctx))
	packlistCmd.AddCommand(newPacklistTimerCommand(ctx))

	return packlistCmd
}

func newPacklistListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var tasks bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered packlists and their schedulers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				packlists := status.Workflow.Packlists
				if asJSON {
					return writeJSON(cmd, packlists)
				}
				out := cmd.OutOrStdout()
				if len(packlists) == 0 {
					fmt.Fprintln(out, "No packlists registered")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Name", "Bot", "Cursor", "Timer", "Worker", "Downloads", "Last check", "Last error"},
					buildPacklistRows(packlists, time.Now()),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				if !tasks {
					return nil
				}
				for _, pl := range packlists {
					if len(pl.Tasks) == 0 {
						continue
					}
					fmt.Fprintf(out, "\n%s (%s)\n", pl.Name, pl.Source)
					rows := make([][]string, 0, len(pl.Tasks))
					for _, task := range pl.Tasks {
						pack := "-"
						if task.Pack > 0 {
							pack = fmt.Sprintf("#%d", task.Pack)
						}
						rows = append(rows, []string{task.Type, pack, task.Label, formatStatusLabel(task.Status)})
					}
					fmt.Fprint(out, renderTable([]string{"Type", "Pack", "Label", "Status"}, rows, nil))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&tasks, "tasks", false, "Include each packlist's transfer tasks")
	return cmd
}

func newPacklistResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <name>",
		Short: "Rewind a packlist so every pack is examined again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PacklistReset(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", resp.Name, resp.Message)
				return nil
			})
		},
	}
}

func newPacklistRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Check a packlist now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PacklistRun(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", resp.Name, resp.Message)
				return nil
			})
		},
	}
}

func newPacklistTimerCommand(ctx *commandContext) *cobra.Command {
	var off bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "timer <name>",
		Short: "Change or disable a packlist's refresh timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if off && cmd.Flags().Changed("interval") {
				return errors.New("--off and --interval are mutually exclusive")
			}
			if interval < 0 {
				return fmt.Errorf("invalid interval %s", interval)
			}
			req := ipc.PacklistTimerRequest{Name: args[0], Off: off, IntervalSeconds: int(interval / time.Second)}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PacklistTimer(req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.IntervalSeconds == 0 {
					fmt.Fprintf(out, "%s: refresh timer off\n", resp.Name)
					return nil
				}
				fmt.Fprintf(out, "%s: refreshing every %s\n", resp.Name, time.Duration(resp.IntervalSeconds)*time.Second)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Disable the refresh timer")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Refresh interval such as 15m; zero keeps the configured one")
	return cmd
}
