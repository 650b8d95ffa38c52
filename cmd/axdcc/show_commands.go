package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"autoxdcc/internal/api"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	showCmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"shows"},
		Short:   "Manage show subscriptions",
	}

	showCmd.AddCommand(newShowListCommand(ctx))
	showCmd.AddCommand(newShowAddCommand(ctx))
	showCmd.AddCommand(newShowUpdateCommand(ctx))
	showCmd.AddCommand(newShowChangeCommand(ctx, "remove", "Delete a show", showAPI.Remove))
	showCmd.AddCommand(newShowChangeCommand(ctx, "archive", "Stop downloading a show but keep its entry", showAPI.Archive))
	showCmd.AddCommand(newShowChangeCommand(ctx, "restore", "Bring an archived show back", showAPI.Restore))

	return showCmd
}

func newShowListCommand(ctx *commandContext) *cobra.Command {
	var archived bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List subscribed shows",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withShows(func(shows showAPI) error {
				list, err := shows.List(cmd.Context(), archived, query)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					if archived {
						fmt.Fprintln(out, "No archived shows")
					} else {
						fmt.Fprintln(out, "No shows")
					}
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Name", "Episode", "Resolution", "Directory"},
					buildShowRows(list),
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "List archived shows instead")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type showFlags struct {
	episode    int
	resolution string
	directory  string
}

func (f *showFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.episode, "episode", "e", 0, "Last episode already downloaded")
	cmd.Flags().StringVarP(&f.resolution, "resolution", "r", "", "Preferred resolution such as 720p or 1080")
	cmd.Flags().StringVarP(&f.directory, "dir", "d", "", "Subdirectory of the download directory; \"/\" for the root")
}

// request builds a ShowRequest carrying only flags the user set.
func (f *showFlags) request(cmd *cobra.Command, name string) api.ShowRequest {
	req := api.ShowRequest{Name: name}
	if cmd.Flags().Changed("episode") {
		episode := f.episode
		req.Episode = &episode
	}
	if cmd.Flags().Changed("resolution") {
		req.Resolution = f.resolution
	}
	if cmd.Flags().Changed("dir") {
		dir := f.directory
		req.Directory = &dir
	}
	return req
}

func newShowAddCommand(ctx *commandContext) *cobra.Command {
	var flags showFlags
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Subscribe to a show",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := flags.request(cmd, strings.Join(args, " "))
			return ctx.withShows(func(shows showAPI) error {
				change, err := shows.Add(cmd.Context(), req)
				if err != nil {
					return err
				}
				printShowChange(cmd.OutOrStdout(), change)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newShowUpdateCommand(ctx *commandContext) *cobra.Command {
	var flags showFlags
	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Change a show's episode, resolution or directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := flags.request(cmd, strings.Join(args, " "))
			return ctx.withShows(func(shows showAPI) error {
				change, err := shows.Update(cmd.Context(), req)
				if err != nil {
					return err
				}
				printShowChange(cmd.OutOrStdout(), change)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newShowChangeCommand(ctx *commandContext, use, short string, op func(showAPI, context.Context, string) (api.ShowChange, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withShows(func(shows showAPI) error {
				change, err := op(shows, cmd.Context(), query)
				if err != nil {
					return err
				}
				printShowChange(cmd.OutOrStdout(), change)
				return nil
			})
		},
	}
}

func printShowChange(out io.Writer, change api.ShowChange) {
	if len(change.Changes) == 0 {
		fmt.Fprintf(out, "%s: nothing to change\n", change.Show.Name)
		return
	}
	fmt.Fprintf(out, "%s: %s\n", change.Show.Name, strings.Join(change.Changes, ", "))
}

func buildShowRows(shows []api.Show) [][]string {
	rows := make([][]string, 0, len(shows))
	for _, show := range shows {
		episode := "-"
		if show.LastEpisode != nil {
			episode = strconv.Itoa(*show.LastEpisode)
		}
		dir := show.Subdirectory
		if dir == "" {
			dir = "/"
		}
		rows = append(rows, []string{show.Name, episode, fmt.Sprintf("%dp", show.Resolution), dir})
	}
	return rows
}
