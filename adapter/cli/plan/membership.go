package plan

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	"github.com/felixgeelhaar/caravan/internal/client/api"
)

var closeReason string

// planAction builds a command taking a plan id that runs one membership
// transition.
func planAction(use, short string, call func(c *api.Client, ctx context.Context, planID uuid.UUID) (api.Membership, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <plan-id>",
		Short: short,
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
			m, err := call(app.Client, cmd.Context(), planID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Membership is now %s\n", m.Status)
			return nil
		},
	}
}

// decisionAction is planAction for the owner deciding on an applicant.
func decisionAction(use, short string, call func(c *api.Client, ctx context.Context, planID, userID uuid.UUID) (api.Membership, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <plan-id> <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.Require()
			if err != nil {
				return err
			}
			planID, err := cli.ParseID("plan ID", args[0])
			if err != nil {
				return err
			}
			userID, err := cli.ParseID("user ID", args[1])
			if err != nil {
				return err
			}
			m, err := call(app.Client, cmd.Context(), planID, userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Application is now %s\n", m.Status)
			return nil
		},
	}
}

var (
	applyCmd             = planAction("apply", "Apply to join a plan", (*api.Client).Apply)
	cancelApplicationCmd = planAction("cancel-application", "Withdraw your pending application", (*api.Client).CancelApplication)
	acceptInvitationCmd  = planAction("accept-invitation", "Accept an invitation", (*api.Client).AcceptInvitation)
	refuseInvitationCmd  = planAction("refuse-invitation", "Refuse an invitation", (*api.Client).RefuseInvitation)

	acceptCmd = decisionAction("accept", "Accept an application to your plan", (*api.Client).AcceptApplication)
	refuseCmd = decisionAction("refuse", "Refuse an application to your plan", (*api.Client).RefuseApplication)
)

var inviteCmd = &cobra.Command{
	Use:   "invite <plan-id> <email>",
	Short: "Invite a registered user to your plan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		planID, err := cli.ParseID("plan ID", args[0])
		if err != nil {
			return err
		}
		m, err := app.Client.Invite(cmd.Context(), planID, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Invited %s (%s)\n", args[1], m.Status)
		return nil
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <plan-id>",
	Short: "Cancel your plan before it starts",
	Long: `Cancel a plan that has not started. Members are told the reason.

Examples:
  caravan close 550e8400-e29b-41d4-a716-446655440000 --reason "Flights were cancelled"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		planID, err := cli.ParseID("plan ID", args[0])
		if err != nil {
			return err
		}
		if err := app.Client.ClosePlan(cmd.Context(), planID, closeReason); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Plan cancelled.")
		return nil
	},
}

// lifecycleAction builds start and complete.
func lifecycleAction(use, short, done string, call func(c *api.Client, ctx context.Context, planID uuid.UUID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <plan-id>",
		Short: short,
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
			if err := call(app.Client, cmd.Context(), planID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), done)
			return nil
		},
	}
}

var (
	startCmd    = lifecycleAction("start", "Start your plan now", "Plan started. Chat, polls and expenses are open.", (*api.Client).StartPlan)
	completeCmd = lifecycleAction("complete", "Mark your running plan as completed", "Plan completed.", (*api.Client).CompletePlan)
)

// Commands returns the membership and lifecycle commands for the root
// command.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		applyCmd,
		cancelApplicationCmd,
		acceptCmd,
		refuseCmd,
		inviteCmd,
		acceptInvitationCmd,
		refuseInvitationCmd,
		closeCmd,
		startCmd,
		completeCmd,
	}
}

func init() {
	closeCmd.Flags().StringVarP(&closeReason, "reason", "r", "", "why the plan is cancelled (required)")
}
