package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autoxdcc/internal/ipc"
	"autoxdcc/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logstream.Options
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				printed, err := logstream.Stream(cmd.Context(), client, opts, func(line string) {
					fmt.Fprintln(out, line)
				})
				if err != nil {
					return err
				}
				if !printed && !opts.Follow {
					fmt.Fprintln(out, "No log lines")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&opts.Lines, "lines", "n", 50, "Number of trailing lines to show (0 for the whole file)")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVarP(&opts.Match, "match", "m", "", "Only show lines containing this text")
	return cmd
}
