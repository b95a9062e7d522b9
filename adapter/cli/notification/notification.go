package notification

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/caravan/adapter/cli"
)

var (
	unreadOnly bool
	limit      int
)

// Cmd lists the signed-in user's notifications.
var Cmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"inbox"},
	Short:   "Show your notifications",
	Long: `Show applications, invitations and plan updates addressed to you.

Examples:
  caravan notifications --unread
  caravan notifications read <notification-id>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		items, err := app.Client.Notifications(cmd.Context(), unreadOnly, limit)
		if err != nil {
			return fmt.Errorf("failed to list notifications: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(items) == 0 {
			fmt.Fprintln(out, "No notifications.")
			return nil
		}
		fmt.Fprintf(out, "Notifications (%d):\n", len(items))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, n := range items {
			mark := "*"
			if n.ReadAt != nil {
				mark = " "
			}
			fmt.Fprintf(out, "%s %s  %s\n", mark, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Subject)
			if n.Body != "" {
				fmt.Fprintf(out, "   %s\n", n.Body)
			}
			fmt.Fprintf(out, "   ID: %s\n", n.ID)
		}
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		id, err := cli.ParseID("notification ID", args[0])
		if err != nil {
			return err
		}
		if err := app.Client.MarkNotificationRead(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to mark notification: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Marked as read.")
		return nil
	},
}

func init() {
	Cmd.Flags().BoolVarP(&unreadOnly, "unread", "u", false, "only unread notifications")
	Cmd.Flags().IntVarP(&limit, "limit", "n", 0, "max number of notifications (0 = server default)")
	Cmd.AddCommand(readCmd)
}
