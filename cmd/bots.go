package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/robot-leaderboard/internal/commands"
)

type callerFlags struct {
	channelID string
	userID    string
}

func (f *callerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.channelID, "channel", "", "channel id checked against commands.allowed_channels")
	cmd.Flags().StringVar(&f.userID, "user", "", "user id checked against commands.admin_ids")
}

func (f *callerFlags) caller() commands.Caller {
	return commands.Caller{ChannelID: f.channelID, UserID: f.userID}
}

// printReply writes the reply text and turns non-OK outcomes into an error
// so the process exits non-zero.
func printReply(cmd *cobra.Command, reply commands.Reply) error {
	if reply.Outcome != commands.OK {
		return errors.New(reply.Text)
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
	return nil
}

func newAddCmd() *cobra.Command {
	var flags callerFlags
	cmd := &cobra.Command{
		Use:   "add <bot-url>",
		Short: "Add or update a bot by scraping its page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printReply(cmd, appInstance.Commands().Add(cmd.Context(), flags.caller(), args[0]))
		},
	}
	flags.register(cmd)
	return cmd
}

func newRemoveCmd() *cobra.Command {
	var flags callerFlags
	cmd := &cobra.Command{
		Use:   "remove <bot-url>",
		Short: "Stop tracking a bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printReply(cmd, appInstance.Commands().Remove(cmd.Context(), flags.caller(), args[0]))
		},
	}
	flags.register(cmd)
	return cmd
}

func newShowCmd() *cobra.Command {
	var flags callerFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current leaderboard without republishing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printReply(cmd, appInstance.Commands().Show(cmd.Context(), flags.caller()))
		},
	}
	flags.register(cmd)
	return cmd
}

func newRefreshCmd() *cobra.Command {
	var flags callerFlags
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-scrape every tracked bot and republish the leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printReply(cmd, appInstance.Commands().Refresh(cmd.Context(), flags.caller()))
		},
	}
	flags.register(cmd)
	return cmd
}

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Clear the channel and republish the leaderboard from stored data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if !appInstance.Publish(cmd.Context()) {
				return errors.New("a refresh is already running")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Leaderboard republished.")
			return nil
		},
	}
}
