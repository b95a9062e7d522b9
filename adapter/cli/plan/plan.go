package plan

import (
	"github.com/spf13/cobra"
)

// Cmd is the root command for plan browsing.
var Cmd = &cobra.Command{
	Use:     "plans",
	Aliases: []string{"plan", "p"},
	Short:   "Browse and create travel plans",
	Long: `Find plans to join, list your own, and create new ones.

Membership changes have their own top-level commands:
  caravan apply <plan-id>
  caravan accept <plan-id> <user-id>
  caravan start <plan-id>`,
}

func init() {
	Cmd.AddCommand(discoverCmd)
	Cmd.AddCommand(searchCmd)
	Cmd.AddCommand(currentCmd)
	Cmd.AddCommand(historyCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(watchCmd)
}
