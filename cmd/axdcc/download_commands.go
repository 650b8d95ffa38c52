package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"autoxdcc/internal/api"
	"autoxdcc/internal/ipc"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:     "download",
		Aliases: []string{"dl"},
		Short:   "Inspect transfer history and the in-flight set",
	}
	downloadCmd.AddCommand(newDownloadHistoryCommand(ctx))
	downloadCmd.AddCommand(newDownloadClearCommand(ctx))
	return downloadCmd
}

func newDownloadHistoryCommand(ctx *commandContext) *cobra.Command {
	var packlist string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transfers, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(history historyAPI) error {
				rows, err := history.History(cmd.Context(), packlist, limit)
				if err != nil {
					return err
				}
				if asJSON {
					if rows == nil {
						rows = []api.Download{}
					}
					return writeJSON(cmd, rows)
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No downloads recorded")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Updated", "Packlist", "Pack", "File", "Size", "Status", "Error"},
					buildDownloadRows(rows),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&packlist, "packlist", "p", "", "Only show transfers from this packlist")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDownloadClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget every in-flight file so it can be requested again",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DownloadClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d in-flight download(s)\n", resp.Cleared)
				return nil
			})
		},
	}
}

func buildDownloadRows(rows []api.Download) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		updated := row.UpdatedAt
		if updated == "" {
			updated = row.CreatedAt
		}
		size := row.SizeText
		if size == "" && row.Size > 0 {
			size = strconv.FormatInt(row.Size, 10)
		}
		out = append(out, []string{
			updated,
			row.Packlist,
			"#" + strconv.Itoa(row.PackNumber),
			row.Filename,
			size,
			formatStatusLabel(row.Status),
			row.Error,
		})
	}
	return out
}
