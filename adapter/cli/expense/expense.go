package expense

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	"github.com/felixgeelhaar/caravan/internal/client/api"
)

var (
	currency     string
	purpose      string
	expenseDate  string
	receipt      string
	participants []string
	shares       []string
)

// Cmd is the root command for shared expenses.
var Cmd = &cobra.Command{
	Use:   "expenses",
	Short: "Split costs with your group",
}

var listCmd = &cobra.Command{
	Use:     "list <plan-id>",
	Short:   "List a plan's expenses",
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
		expenses, err := app.Client.Expenses(cmd.Context(), planID)
		if err != nil {
			return fmt.Errorf("failed to list expenses: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(expenses) == 0 {
			fmt.Fprintln(out, "No expenses yet.")
			return nil
		}
		fmt.Fprintf(out, "Expenses (%d):\n", len(expenses))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, e := range expenses {
			fmt.Fprintf(out, "%s  %s  %s\n", e.ExpenseDate.Format("2006-01-02"), cli.Money(e.TotalMinor, e.Currency), e.Description)
			fmt.Fprintf(out, "   ID: %s\n", e.ID)
			if e.ReceiptPath != "" {
				fmt.Fprintf(out, "   Receipt: %s\n", app.Client.FileURL(e.ReceiptPath))
			}
			for _, a := range e.Allocations {
				state := "owes"
				if a.Paid {
					state = "paid"
				}
				fmt.Fprintf(out, "   %s %s %s  (allocation %s)\n", a.UserID, state, cli.Money(a.AmountMinor, e.Currency), a.ID)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <plan-id> <description> <amount>",
	Short: "Record an expense you paid",
	Long: `Record an expense you paid for the group.

The amount is in major units ("42" or "42.50"). Without --participant or
--share it is split evenly over every member.

Examples:
  caravan expenses add 550e8400-... "Dinner" 84.00
  caravan expenses add 550e8400-... "Taxi" 30 --participant <user-id> --participant <user-id>
  caravan expenses add 550e8400-... "Museum" 25 --share <user-id>=15 --share <user-id>=10 --receipt ticket.pdf`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		planID, err := cli.ParseID("plan ID", args[0])
		if err != nil {
			return err
		}
		total, err := ParseAmount(args[2])
		if err != nil {
			return err
		}

		in := api.NewExpense{
			Description: args[1],
			Purpose:     purpose,
			TotalMinor:  total,
			Currency:    strings.ToUpper(currency),
		}
		if expenseDate != "" {
			d, err := time.Parse("2006-01-02", expenseDate)
			if err != nil {
				return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
			}
			in.ExpenseDate = &d
		}
		for _, p := range participants {
			id, err := cli.ParseID("participant", p)
			if err != nil {
				return err
			}
			in.Participants = append(in.Participants, id)
		}
		for _, s := range shares {
			share, err := parseShare(s)
			if err != nil {
				return err
			}
			in.Shares = append(in.Shares, share)
		}

		if receipt != "" {
			f, err := os.Open(receipt)
			if err != nil {
				return fmt.Errorf("failed to open receipt: %w", err)
			}
			info, err := app.Client.Upload(cmd.Context(), filepath.Base(receipt), f)
			_ = f.Close()
			if err != nil {
				return fmt.Errorf("failed to upload receipt: %w", err)
			}
			in.ReceiptPath = info.Path
		}

		id, err := app.Client.CreateExpense(cmd.Context(), planID, in)
		if err != nil {
			return fmt.Errorf("failed to add expense: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Expense added: %s (%s)\n", id, cli.Money(total, in.Currency))
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <plan-id>",
	Short: "Show what you owe and are owed",
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
		summary, err := app.Client.ExpenseSummary(cmd.Context(), planID)
		if err != nil {
			return fmt.Errorf("failed to load summary: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(summary) == 0 {
			fmt.Fprintln(out, "Nothing to settle.")
			return nil
		}
		for _, s := range summary {
			fmt.Fprintf(out, "%s\n", s.Currency)
			fmt.Fprintf(out, "  you paid:     %s\n", cli.Money(s.Paid, s.Currency))
			fmt.Fprintf(out, "  your share:   %s\n", cli.Money(s.Share, s.Currency))
			fmt.Fprintf(out, "  you owe:      %s\n", cli.Money(s.Outstanding, s.Currency))
			fmt.Fprintf(out, "  owed to you:  %s\n", cli.Money(s.OwedToYou, s.Currency))
			fmt.Fprintf(out, "  balance:      %s\n", cli.Money(s.Balance, s.Currency))
		}
		return nil
	},
}

var paidCmd = &cobra.Command{
	Use:   "paid <expense-id> <allocation-id>",
	Short: "Mark a share of an expense as settled",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		expenseID, err := cli.ParseID("expense ID", args[0])
		if err != nil {
			return err
		}
		allocationID, err := cli.ParseID("allocation ID", args[1])
		if err != nil {
			return err
		}
		if err := app.Client.MarkPaid(cmd.Context(), expenseID, allocationID); err != nil {
			return fmt.Errorf("failed to mark paid: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Marked as paid.")
		return nil
	},
}

// ParseAmount converts a major-unit decimal such as "12.5" to minor units.
func ParseAmount(s string) (int64, error) {
	whole, frac, hasFrac := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	var cents int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		if cents, err = strconv.ParseInt(frac, 10, 64); err != nil || cents < 0 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	total := units*100 + cents
	if total == 0 {
		return 0, errors.New("amount must be positive")
	}
	return total, nil
}

func parseShare(s string) (api.Share, error) {
	user, amount, ok := strings.Cut(s, "=")
	if !ok {
		return api.Share{}, fmt.Errorf("invalid share %q (use <user-id>=<amount>)", s)
	}
	id, err := uuid.Parse(user)
	if err != nil {
		return api.Share{}, fmt.Errorf("invalid share %q: %w", s, err)
	}
	minor, err := ParseAmount(amount)
	if err != nil {
		return api.Share{}, err
	}
	return api.Share{UserID: id, AmountMinor: minor}, nil
}

func init() {
	addCmd.Flags().StringVar(&currency, "currency", "EUR", "ISO currency code")
	addCmd.Flags().StringVar(&purpose, "purpose", "", "what the money was for")
	addCmd.Flags().StringVar(&expenseDate, "date", "", "expense date (YYYY-MM-DD, default today)")
	addCmd.Flags().StringVar(&receipt, "receipt", "", "receipt file to attach")
	addCmd.Flags().StringSliceVar(&participants, "participant", nil, "member sharing the cost (repeatable)")
	addCmd.Flags().StringSliceVar(&shares, "share", nil, "fixed share as <user-id>=<amount> (repeatable)")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(summaryCmd)
	Cmd.AddCommand(paidCmd)
}
