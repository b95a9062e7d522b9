package plan

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	planning "github.com/felixgeelhaar/caravan/internal/planning/domain"
)

var limit int

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List plans you can join",
	Long: `List public plans that are open for applications, soonest first.

Examples:
  caravan plans discover
  caravan plans discover --limit 5`,
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		plans, err := app.Client.Discover(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to discover plans: %w", err)
		}
		cli.PrintPlans(cmd.OutOrStdout(), "Open plans", plans)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search open plans",
	Long: `Search open plans by title, description or destination.

Examples:
  caravan plans search lisbon`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		keyword := strings.Join(args, " ")
		plans, err := app.Client.Search(cmd.Context(), keyword, limit)
		if err != nil {
			return fmt.Errorf("failed to search plans: %w", err)
		}
		cli.PrintPlans(cmd.OutOrStdout(), fmt.Sprintf("Plans matching %q", keyword), plans)
		return nil
	},
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "List your open and running plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		plans, err := app.Client.CurrentPlans(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list plans: %w", err)
		}
		cli.PrintPlans(cmd.OutOrStdout(), "Your plans", plans)

		for _, p := range plans {
			if p.Status == planning.PlanInProgress {
				fmt.Fprintf(cmd.OutOrStdout(), "Travelling now: %s\n", p.Title)
			}
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List your finished plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		plans, err := app.Client.PlanHistory(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list plans: %w", err)
		}
		cli.PrintPlans(cmd.OutOrStdout(), "Past plans", plans)
		return nil
	},
}

func init() {
	discoverCmd.Flags().IntVarP(&limit, "limit", "n", 0, "max number of plans (0 = server default)")
	searchCmd.Flags().IntVarP(&limit, "limit", "n", 0, "max number of plans (0 = server default)")
}
