package plan

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	"github.com/felixgeelhaar/caravan/internal/client/api"
)

var showCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Show a plan with its members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		planID, err := cli.ParseID("plan ID", args[0])
		if err != nil {
			return err
		}
		detail, err := app.Client.Plan(cmd.Context(), planID)
		if err != nil {
			return fmt.Errorf("failed to load plan: %w", err)
		}
		printDetail(cmd.OutOrStdout(), detail)
		return nil
	},
}

func printDetail(w io.Writer, d api.PlanDetail) {
	p := d.Plan
	fmt.Fprintf(w, "%s %s\n", cli.StatusIcon(p.Status), p.Title)
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "  ID:      %s\n", p.ID)
	fmt.Fprintf(w, "  Status:  %s\n", p.Status)
	if p.Origin != "" {
		fmt.Fprintf(w, "  From:    %s\n", p.Origin)
	}
	if p.Destination != "" {
		fmt.Fprintf(w, "  To:      %s\n", p.Destination)
	}
	fmt.Fprintf(w, "  Dates:   %s to %s\n", p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "  Members: %d/%d (min %d)\n", d.ActiveCount, p.MaxMembers, p.MinMembers)
	if p.Description != "" {
		fmt.Fprintf(w, "\n  %s\n", p.Description)
	}
	if p.CancellationReason != "" {
		fmt.Fprintf(w, "  Cancelled: %s\n", p.CancellationReason)
	}
	if d.ViewerStatus != "" {
		fmt.Fprintf(w, "  You:     %s\n", d.ViewerStatus)
	}

	fmt.Fprintln(w, "\nMembers:")
	for _, m := range d.Members {
		marker := " "
		if m.Status.IsActive() {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %-24s %-18s %s\n", marker, cli.Member(m), m.Status, m.UserID)
	}
}
