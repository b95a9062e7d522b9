package plan

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	"github.com/felixgeelhaar/caravan/internal/client/api"
	"github.com/felixgeelhaar/caravan/internal/client/push"
	"github.com/felixgeelhaar/caravan/internal/client/reconcile"
	planning "github.com/felixgeelhaar/caravan/internal/planning/domain"
)

var watchFor time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [plan-id]",
	Short: "Follow plans as they change",
	Long: `Keep plan views up to date and print every change.

Without a plan ID, watches discovery and your own plans. With one, watches
that plan's members, polls and expenses, refreshing as soon as the server
pushes a change and polling in the background either way.

Examples:
  caravan plans watch
  caravan plans watch 550e8400-e29b-41d4-a716-446655440000 --for 10m`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.Require()
		if err != nil {
			return err
		}
		planID := uuid.Nil
		if len(args) == 1 {
			if planID, err = cli.ParseID("plan ID", args[0]); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		if watchFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchFor)
			defer cancel()
		}
		return watch(ctx, app, planID, &syncWriter{w: cmd.OutOrStdout()})
	},
}

func watch(ctx context.Context, app *cli.App, planID uuid.UUID, out io.Writer) error {
	cfg := app.Config
	m := reconcile.NewManager(app.Logger)
	var wg sync.WaitGroup

	if planID == uuid.Nil {
		discovery := reconcile.Discovery(app.Client, cfg.Discovery, app.Logger)
		current := reconcile.CurrentPlans(app.Client, cfg.MyPlans, app.Logger)
		m.Add(uuid.Nil, discovery)
		m.Add(uuid.Nil, current)
		printEvents(&wg, discovery, func(ev reconcile.Event[api.PlanSummary]) { printSummaries(out, "open plans", ev) })
		printEvents(&wg, current, func(ev reconcile.Event[api.PlanSummary]) { printSummaries(out, "your plans", ev) })
	} else {
		// The plan must be readable before anything is watched.
		current, err := app.Client.Plan(ctx, planID)
		if err != nil {
			return err
		}
		detail := reconcile.PlanDetail(app.Client, planID, cfg.Detail, app.Logger)
		m.Add(planID, detail)
		printEvents(&wg, detail, func(ev reconcile.Event[api.PlanDetail]) { printDetailEvent(out, ev) })

		// Polls and expenses exist once the trip has started.
		if current.Plan.Status != planning.PlanNew {
			polls := reconcile.Polls(app.Client, planID, cfg.Polls, app.Logger)
			expenses := reconcile.Expenses(app.Client, planID, cfg.Expenses, app.Logger)
			m.Add(planID, polls)
			m.Add(planID, expenses)
			printEvents(&wg, polls, func(ev reconcile.Event[api.Poll]) { printPolls(out, ev) })
			printEvents(&wg, expenses, func(ev reconcile.Event[api.Expense]) { printExpenses(out, ev) })
		}

		if unfollow := followHints(ctx, app, m, planID); unfollow != nil {
			defer unfollow()
		}
	}

	err := m.Run(ctx)
	wg.Wait()
	return err
}

// followHints subscribes to push hints for planID. Without them the pollers
// still converge on their own cadence.
func followHints(ctx context.Context, app *cli.App, m *reconcile.Manager, planID uuid.UUID) func() {
	tok, err := app.Session.Token()
	if err != nil {
		return nil
	}
	pcfg := push.DefaultConfig(app.Config.WSURL, tok.AccessToken)
	pcfg.Logger = app.Logger
	conn, err := push.Dial(ctx, pcfg)
	if err != nil {
		app.Logger.Warn("push unavailable, polling only", "error", err)
		return nil
	}
	unsubscribe, err := m.Follow(ctx, conn, planID)
	if err != nil {
		app.Logger.Warn("plan hints unavailable, polling only", "error", err)
		_ = conn.Close()
		return nil
	}
	return func() {
		_ = unsubscribe()
		_ = conn.Close()
	}
}

func printEvents[T any](wg *sync.WaitGroup, p *reconcile.Poller[T], show func(reconcile.Event[T])) {
	wg.Go(func() {
		for ev := range p.Events() {
			show(ev)
		}
	})
}

func printError(w io.Writer, what string, err error, transient bool) {
	if transient {
		fmt.Fprintf(w, "%s: %s (retrying)\n", what, cli.Describe(err))
		return
	}
	fmt.Fprintf(w, "%s: %s\n", what, cli.Describe(err))
}

func printSummaries(w io.Writer, what string, ev reconcile.Event[api.PlanSummary]) {
	switch ev.Kind {
	case reconcile.EventLoaded:
		fmt.Fprintf(w, "%s: %d\n", what, len(ev.Snapshot))
		for _, p := range ev.Snapshot {
			fmt.Fprintf(w, "  %s %s  %s\n", cli.StatusIcon(p.Status), p.Title, p.ID)
		}
	case reconcile.EventChanged:
		for _, p := range ev.Added {
			fmt.Fprintf(w, "%s: + %s  %s\n", what, p.Title, p.ID)
		}
		for _, p := range ev.Removed {
			fmt.Fprintf(w, "%s: - %s\n", what, p.Title)
		}
		for _, p := range ev.Changed {
			fmt.Fprintf(w, "%s: ~ %s (%s, %d/%d)\n", what, p.Title, p.Status, p.ActiveCount, p.MaxMembers)
		}
	case reconcile.EventError:
		printError(w, what, ev.Err, ev.Transient)
	}
}

func printDetailEvent(w io.Writer, ev reconcile.Event[api.PlanDetail]) {
	switch ev.Kind {
	case reconcile.EventLoaded:
		d := ev.Snapshot[0]
		fmt.Fprintf(w, "plan: %s (%s, %d/%d members)\n", d.Plan.Title, d.Plan.Status, d.ActiveCount, d.Plan.MaxMembers)
	case reconcile.EventChanged:
		prev, next := ev.Previous[0], ev.Snapshot[0]
		if prev.Plan.Status != next.Plan.Status {
			fmt.Fprintf(w, "plan: %s -> %s\n", prev.Plan.Status, next.Plan.Status)
		}
		delta := reconcile.MemberChanges(ev)
		for _, m := range delta.Joined {
			fmt.Fprintf(w, "plan: %s joined\n", cli.Member(m))
		}
		for _, m := range delta.Left {
			fmt.Fprintf(w, "plan: %s left\n", cli.Member(m))
		}
		if pending := pendingCount(next) - pendingCount(prev); pending > 0 {
			fmt.Fprintf(w, "plan: %d new pending request(s)\n", pending)
		}
	case reconcile.EventError:
		printError(w, "plan", ev.Err, ev.Transient)
	}
}

func pendingCount(d api.PlanDetail) int {
	n := 0
	for _, m := range d.Members {
		if m.Status.IsPending() {
			n++
		}
	}
	return n
}

func printPolls(w io.Writer, ev reconcile.Event[api.Poll]) {
	switch ev.Kind {
	case reconcile.EventLoaded:
		fmt.Fprintf(w, "polls: %d\n", len(ev.Snapshot))
	case reconcile.EventChanged:
		for _, p := range ev.Added {
			fmt.Fprintf(w, "polls: new %q\n", p.Question)
		}
		for _, p := range ev.Changed {
			state := "open"
			if !p.Active {
				state = "closed"
			}
			fmt.Fprintf(w, "polls: %q has %d vote(s), %s\n", p.Question, p.TotalVotes, state)
		}
	case reconcile.EventError:
		printError(w, "polls", ev.Err, ev.Transient)
	}
}

func printExpenses(w io.Writer, ev reconcile.Event[api.Expense]) {
	switch ev.Kind {
	case reconcile.EventLoaded:
		fmt.Fprintf(w, "expenses: %d\n", len(ev.Snapshot))
	case reconcile.EventChanged:
		for _, e := range ev.Added {
			fmt.Fprintf(w, "expenses: new %s, %s\n", e.Description, cli.Money(e.TotalMinor, e.Currency))
		}
		for _, e := range ev.Changed {
			fmt.Fprintf(w, "expenses: %s updated\n", e.Description)
		}
	case reconcile.EventError:
		printError(w, "expenses", ev.Err, ev.Transient)
	}
}

// syncWriter serialises the printers' output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func init() {
	watchCmd.Flags().DurationVar(&watchFor, "for", 0, "stop after this long (0 = until interrupted)")
}
