// Command caravan is the command-line client: accounts, plan discovery and
// membership, group chat, polls and expenses against a caravand server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	"github.com/felixgeelhaar/caravan/adapter/cli/auth"
	"github.com/felixgeelhaar/caravan/adapter/cli/chat"
	"github.com/felixgeelhaar/caravan/adapter/cli/expense"
	"github.com/felixgeelhaar/caravan/adapter/cli/notification"
	"github.com/felixgeelhaar/caravan/adapter/cli/plan"
	"github.com/felixgeelhaar/caravan/adapter/cli/poll"
	"github.com/felixgeelhaar/caravan/pkg/observability"
)

func main() {
	// Warnings only unless -v; stdout belongs to command output.
	logCfg := observability.DefaultLogConfig("caravan")
	logCfg.Level = observability.LogLevelWarn
	cli.SetLogger(observability.NewLogger(logCfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Register commands
	cli.AddCommand(auth.Commands()...)
	cli.AddCommand(plan.Cmd)
	cli.AddCommand(plan.Commands()...)
	cli.AddCommand(chat.Cmd)
	cli.AddCommand(poll.Cmd)
	cli.AddCommand(expense.Cmd)
	cli.AddCommand(notification.Cmd)

	cli.Execute(ctx)
}
