package poll

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	"github.com/felixgeelhaar/caravan/internal/client/api"
)

// Cmd is the root command for group polls.
var Cmd = &cobra.Command{
	Use:   "polls",
	Short: "Vote on decisions with your group",
	Long: `Create polls and vote on them. Polls belong to a running plan and
only its members can see them.`,
}

var listCmd = &cobra.Command{
	Use:     "list <plan-id>",
	Short:   "List a plan's polls",
	Aliases: []string{"ls"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		planID, err := cli.ParseID("plan ID", args[0])
		if err != nil {
			return err
		}
		polls, err := app.Client.Polls(cmd.Context(), planID)
		if err != nil {
			return fmt.Errorf("failed to list polls: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(polls) == 0 {
			fmt.Fprintln(out, "No polls yet.")
			return nil
		}
		fmt.Fprintf(out, "Polls (%d):\n", len(polls))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, p := range polls {
			printPoll(cmd, p)
		}
		return nil
	},
}

func printPoll(cmd *cobra.Command, p api.Poll) {
	out := cmd.OutOrStdout()
	state := "open"
	if !p.Active {
		state = "closed"
	}
	fmt.Fprintf(out, "%s (%s, %d votes)\n", p.Question, state, p.TotalVotes)
	fmt.Fprintf(out, "   ID: %s\n", p.ID)
	for _, o := range p.Options {
		mark := " "
		if p.ViewerVote != nil && *p.ViewerVote == o.ID {
			mark = ">"
		}
		fmt.Fprintf(out, "   %s %-30s %3d  %s\n", mark, o.Text, o.Votes, o.ID)
	}
	fmt.Fprintln(out)
}

var createCmd = &cobra.Command{
	Use:   "create <plan-id> <question> <option> <option>...",
	Short: "Create a poll",
	Long: `Create a poll with at least two options.

Examples:
  caravan polls create 550e8400-... "Where do we eat tonight?" "Time Out Market" "Cervejaria Ramiro"`,
	Args: cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		planID, err := cli.ParseID("plan ID", args[0])
		if err != nil {
			return err
		}
		id, err := app.Client.CreatePoll(cmd.Context(), planID, args[1], args[2:])
		if err != nil {
			return fmt.Errorf("failed to create poll: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Poll created: %s\n", id)
		return nil
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <poll-id> <option-id>",
	Short: "Vote for an option",
	Long: `Vote for an option. Voting again moves your vote.

Option IDs are shown by 'caravan polls list'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		pollID, err := cli.ParseID("poll ID", args[0])
		if err != nil {
			return err
		}
		optionID, err := cli.ParseID("option ID", args[1])
		if err != nil {
			return err
		}
		if err := app.Client.Vote(cmd.Context(), pollID, optionID); err != nil {
			return fmt.Errorf("failed to vote: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Vote recorded.")
		return nil
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <poll-id>",
	Short: "Close a poll you created",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		pollID, err := cli.ParseID("poll ID", args[0])
		if err != nil {
			return err
		}
		if err := app.Client.ClosePoll(cmd.Context(), pollID); err != nil {
			return fmt.Errorf("failed to close poll: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Poll closed.")
		return nil
	},
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(voteCmd)
	Cmd.AddCommand(closeCmd)
}
