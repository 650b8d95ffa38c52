package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"autoxdcc/internal/ipc"
)

func newBotCommand(ctx *commandContext) *cobra.Command {
	botCmd := &cobra.Command{
		Use:   "bot",
		Short: "Manage trusted bots and request packs directly",
	}
	botCmd.AddCommand(newBotListCommand(ctx))
	botCmd.AddCommand(newBotTrustCommand(ctx, "add", "Trust a bot to send files for a packlist", true))
	botCmd.AddCommand(newBotTrustCommand(ctx, "remove", "Stop trusting a bot for a packlist", false))
	botCmd.AddCommand(newBotGetCommand(ctx))
	return botCmd
}

func newBotListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list <packlist>",
		Short: "List the bots a packlist accepts files from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BotList(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				printTrustedBots(cmd, resp)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newBotTrustCommand(ctx *commandContext, use, short string, trusted bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <packlist> <nick>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				edit := client.BotAdd
				if !trusted {
					edit = client.BotRemove
				}
				resp, err := edit(args[0], args[1])
				if err != nil {
					return err
				}
				if !resp.Changed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no change for %s\n", resp.Packlist, args[1])
				}
				printTrustedBots(cmd, resp)
				return nil
			})
		},
	}
}

func newBotGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <bot> <pack>",
		Short: "Request one pack from a bot outside any packlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pack, err := strconv.Atoi(strings.TrimPrefix(args[1], "#"))
			if err != nil || pack <= 0 {
				return fmt.Errorf("invalid pack number %q", args[1])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BotGet(args[0], pack)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func printTrustedBots(cmd *cobra.Command, resp *ipc.BotResponse) {
	out := cmd.OutOrStdout()
	if len(resp.Bots) == 0 {
		fmt.Fprintf(out, "%s: no trusted bots\n", resp.Packlist)
		return
	}
	fmt.Fprintf(out, "%s: %s\n", resp.Packlist, strings.Join(resp.Bots, ", "))
}
