package plan

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	"github.com/felixgeelhaar/caravan/internal/client/api"
)

var (
	description string
	category    string
	private     bool
	origin      string
	destination string
	startDate   string
	endDate     string
	minMembers  int
	maxMembers  int
	budget      int64
	languages   []string
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a plan you own",
	Long: `Create a travel plan. You become its owner and first member.

Dates use YYYY-MM-DD. You cannot create a plan while one of yours is
already open or running.

Examples:
  caravan plans create "Lisbon long weekend" --to Lisbon --start 2026-11-06 --end 2026-11-09 --max 4
  caravan plans create "Alps hut trip" --to Zermatt --start 2027-02-01 --end 2027-02-07 --max 6 --private`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		if startDate == "" || endDate == "" {
			return errors.New("--start and --end are required")
		}
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return fmt.Errorf("invalid start date format (use YYYY-MM-DD): %w", err)
		}
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return fmt.Errorf("invalid end date format (use YYYY-MM-DD): %w", err)
		}

		plan := api.NewPlan{
			Title:           args[0],
			Description:     description,
			Category:        category,
			Origin:          origin,
			Destination:     destination,
			StartDate:       start,
			EndDate:         end,
			MinMembers:      minMembers,
			MaxMembers:      maxMembers,
			EstimatedBudget: budget,
			Languages:       languages,
		}
		if private {
			plan.Visibility = "PRIVATE"
		}

		id, err := app.Client.CreatePlan(cmd.Context(), plan)
		if err != nil {
			return fmt.Errorf("failed to create plan: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Plan created: %s\n", id)
		fmt.Fprintf(out, "  title: %s\n", plan.Title)
		fmt.Fprintf(out, "  dates: %s to %s\n", startDate, endDate)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&description, "description", "", "plan description")
	createCmd.Flags().StringVar(&category, "category", "", "plan category")
	createCmd.Flags().BoolVar(&private, "private", false, "hide the plan from discovery")
	createCmd.Flags().StringVar(&origin, "from", "", "where the trip starts")
	createCmd.Flags().StringVar(&destination, "to", "", "destination")
	createCmd.Flags().StringVar(&startDate, "start", "", "start date (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&endDate, "end", "", "end date (YYYY-MM-DD)")
	createCmd.Flags().IntVar(&minMembers, "min", 0, "members needed to start")
	createCmd.Flags().IntVar(&maxMembers, "max", 4, "member capacity including you")
	createCmd.Flags().Int64Var(&budget, "budget", 0, "estimated budget in minor units")
	createCmd.Flags().StringSliceVar(&languages, "language", nil, "spoken language (repeatable)")
}
