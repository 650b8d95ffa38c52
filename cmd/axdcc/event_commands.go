package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"autoxdcc/internal/ipc"
	"autoxdcc/internal/transport"
)

// newEventCommand exposes the bridge a chat client scripts against: it
// reports DCC activity to the daemon and drains the XDCC commands the
// daemon wants sent.
func newEventCommand(ctx *commandContext) *cobra.Command {
	eventCmd := &cobra.Command{
		Use:   "event",
		Short: "Report chat client transfer events",
	}
	eventCmd.AddCommand(newEventOfferCommand(ctx))
	eventCmd.AddCommand(newEventConnectCommand(ctx))
	eventCmd.AddCommand(newEventCompleteCommand(ctx))
	eventCmd.AddCommand(newEventFailedCommand(ctx))
	eventCmd.AddCommand(newEventStalledCommand(ctx))
	eventCmd.AddCommand(newEventPollCommand(ctx, "poll"))
	return eventCmd
}

func newEventOfferCommand(ctx *commandContext) *cobra.Command {
	var ev transport.Offer
	cmd := &cobra.Command{
		Use:   "offer",
		Short: "Report a DCC send offer; prints accept, reject or ignore",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Offer(ev)
				return printEventResponse(cmd.OutOrStdout(), resp, err)
			})
		},
	}
	cmd.Flags().StringVar(&ev.Bot, "bot", "", "Sending nick")
	cmd.Flags().StringVar(&ev.Filename, "file", "", "Offered file name")
	cmd.Flags().Int64Var(&ev.Size, "size", 0, "Offered size in bytes")
	cmd.Flags().StringVar(&ev.Address, "address", "", "Sender address")
	_ = cmd.MarkFlagRequired("bot")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newEventConnectCommand(ctx *commandContext) *cobra.Command {
	var ev transport.Connect
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Report an established transfer connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Connect(ev)
				return printEventResponse(cmd.OutOrStdout(), resp, err)
			})
		},
	}
	cmd.Flags().StringVar(&ev.Bot, "bot", "", "Sending nick")
	cmd.Flags().StringVar(&ev.Filename, "file", "", "File name")
	cmd.Flags().StringVar(&ev.Address, "address", "", "Sender address")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newEventCompleteCommand(ctx *commandContext) *cobra.Command {
	var ev transport.Complete
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Report a finished receive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Complete(ev)
				return printEventResponse(cmd.OutOrStdout(), resp, err)
			})
		},
	}
	cmd.Flags().StringVar(&ev.Filename, "file", "", "File name")
	cmd.Flags().StringVar(&ev.Destination, "dest", "", "Where the chat client saved the file")
	cmd.Flags().StringVar(&ev.Bot, "bot", "", "Sending nick")
	cmd.Flags().DurationVar(&ev.Elapsed, "elapsed", 0, "Transfer duration")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newEventFailedCommand(ctx *commandContext) *cobra.Command {
	var ev transport.Failed
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "Report an aborted receive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Failed(ev)
				return printEventResponse(cmd.OutOrStdout(), resp, err)
			})
		},
	}
	cmd.Flags().StringVar(&ev.Filename, "file", "", "File name")
	cmd.Flags().StringVar(&ev.Destination, "dest", "", "Partial file location")
	cmd.Flags().StringVar(&ev.Bot, "bot", "", "Sending nick")
	cmd.Flags().StringVar(&ev.Error, "error", "", "Failure reason")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newEventStalledCommand(ctx *commandContext) *cobra.Command {
	var ev transport.Stalled
	var direction string
	cmd := &cobra.Command{
		Use:   "stalled",
		Short: "Report a transfer that stopped making progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			ev.Direction = transport.Direction(direction)
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stalled(ev)
				return printEventResponse(cmd.OutOrStdout(), resp, err)
			})
		},
	}
	cmd.Flags().StringVar(&direction, "direction", string(transport.DirectionReceive), "RECV or SEND")
	cmd.Flags().StringVar(&ev.Filename, "file", "", "File name")
	cmd.Flags().StringVar(&ev.Bot, "bot", "", "Remote nick")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// newEventPollCommand is registered both as `event poll` and as the
// top-level `outbox` command.
func newEventPollCommand(ctx *commandContext, use string) *cobra.Command {
	var batch int
	var wait time.Duration
	var follow bool
	cmd := &cobra.Command{
		Use:   use,
		Short: "Print pending chat commands, one per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				for {
					resp, err := client.Commands(batch, wait)
					if err != nil {
						return err
					}
					for _, c := range resp.Commands {
						fmt.Fprintln(out, c.Text)
					}
					if !follow {
						return nil
					}
					select {
					case <-cmd.Context().Done():
						return nil
					default:
					}
				}
			})
		},
	}
	cmd.Flags().IntVar(&batch, "max", 0, "Maximum commands per batch (0 for the daemon default)")
	cmd.Flags().DurationVar(&wait, "wait", time.Second, "How long to wait for the first command")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep polling until interrupted")
	return cmd
}

func printEventResponse(out io.Writer, resp *ipc.EventResponse, err error) error {
	if err != nil {
		return err
	}
	if resp == nil {
		return errors.New("empty response from daemon")
	}
	if !resp.Matched {
		fmt.Fprintln(out, resp.Action)
		return nil
	}
	line := fmt.Sprintf("%s %s", resp.Action, resp.Packlist)
	if resp.Status != "" {
		line += " " + resp.Status
	}
	if resp.Destination != "" {
		line += " " + resp.Destination
	}
	fmt.Fprintln(out, line)
	return nil
}
