package reconcile

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/caravan/internal/client/api"
	"github.com/felixgeelhaar/caravan/pkg/config"
)

// Source is the part of the API client the pollers read from.
type Source interface {
	Discover(ctx context.Context, limit int) ([]api.PlanSummary, error)
	CurrentPlans(ctx context.Context) ([]api.PlanSummary, error)
	PlanHistory(ctx context.Context) ([]api.PlanSummary, error)
	Plan(ctx context.Context, planID uuid.UUID) (api.PlanDetail, error)
	Polls(ctx context.Context, planID uuid.UUID) ([]api.Poll, error)
	Expenses(ctx context.Context, planID uuid.UUID) ([]api.Expense, error)
}

func summaryKey(p api.PlanSummary) string { return p.ID.String() }
func pollKey(p api.Poll) string           { return p.ID.String() }
func expenseKey(e api.Expense) string     { return e.ID.String() }
func detailKey(d api.PlanDetail) string   { return d.Plan.ID.String() }

// Discovery reconciles the joinable plan list.
func Discovery(src Source, cad config.Cadence, logger *slog.Logger) *Poller[api.PlanSummary] {
	return NewPoller(Options[api.PlanSummary]{
		Name:     "discovery",
		Fetch:    func(ctx context.Context) ([]api.PlanSummary, error) { return src.Discover(ctx, 0) },
		Key:      summaryKey,
		Interval: cad.Interval,
		Warmup:   cad.Warmup,
		Logger:   logger,
	})
}

// CurrentPlans reconciles the caller's open and running plans.
func CurrentPlans(src Source, cad config.Cadence, logger *slog.Logger) *Poller[api.PlanSummary] {
	return NewPoller(Options[api.PlanSummary]{
		Name:     "plans.current",
		Fetch:    src.CurrentPlans,
		Key:      summaryKey,
		Interval: cad.Interval,
		Warmup:   cad.Warmup,
		Logger:   logger,
	})
}

// PlanHistory reconciles the caller's finished plans.
func PlanHistory(src Source, cad config.Cadence, logger *slog.Logger) *Poller[api.PlanSummary] {
	return NewPoller(Options[api.PlanSummary]{
		Name:     "plans.history",
		Fetch:    src.PlanHistory,
		Key:      summaryKey,
		Interval: cad.Interval,
		Warmup:   cad.Warmup,
		Logger:   logger,
	})
}

// PlanDetail reconciles one plan with its members. The snapshot holds a
// single element; use MemberChanges on its events.
func PlanDetail(src Source, planID uuid.UUID, cad config.Cadence, logger *slog.Logger) *Poller[api.PlanDetail] {
	return NewPoller(Options[api.PlanDetail]{
		Name: "plan." + planID.String(),
		Fetch: func(ctx context.Context) ([]api.PlanDetail, error) {
			d, err := src.Plan(ctx, planID)
			if err != nil {
				return nil, err
			}
			return []api.PlanDetail{d}, nil
		},
		Key:      detailKey,
		Interval: cad.Interval,
		Warmup:   cad.Warmup,
		Logger:   logger,
	})
}

// Polls reconciles the polls of a plan.
func Polls(src Source, planID uuid.UUID, cad config.Cadence, logger *slog.Logger) *Poller[api.Poll] {
	return NewPoller(Options[api.Poll]{
		Name:     "polls." + planID.String(),
		Fetch:    func(ctx context.Context) ([]api.Poll, error) { return src.Polls(ctx, planID) },
		Key:      pollKey,
		Interval: cad.Interval,
		Warmup:   cad.Warmup,
		Logger:   logger,
	})
}

// Expenses reconciles the expenses of a plan.
func Expenses(src Source, planID uuid.UUID, cad config.Cadence, logger *slog.Logger) *Poller[api.Expense] {
	return NewPoller(Options[api.Expense]{
		Name:     "expenses." + planID.String(),
		Fetch:    func(ctx context.Context) ([]api.Expense, error) { return src.Expenses(ctx, planID) },
		Key:      expenseKey,
		Interval: cad.Interval,
		Warmup:   cad.Warmup,
		Logger:   logger,
	})
}

// MemberDelta is the change in a plan's active members between two
// snapshots. Movement between pending statuses is not membership change.
type MemberDelta struct {
	Joined []api.Member
	Left   []api.Member
}

// Empty reports whether nobody joined or left.
func (d MemberDelta) Empty() bool { return len(d.Joined) == 0 && len(d.Left) == 0 }

// MemberChanges derives the active member delta from a plan detail event.
func MemberChanges(ev Event[api.PlanDetail]) MemberDelta {
	if ev.Kind != EventChanged || len(ev.Snapshot) == 0 || len(ev.Previous) == 0 {
		return MemberDelta{}
	}
	return DiffMembers(ev.Previous[0].Members, ev.Snapshot[0].Members)
}

// DiffMembers compares the active subsets of two member lists.
func DiffMembers(before, after []api.Member) MemberDelta {
	was := activeSet(before)
	is := activeSet(after)

	var d MemberDelta
	for _, m := range after {
		if _, ok := is[m.UserID]; ok {
			if _, old := was[m.UserID]; !old {
				d.Joined = append(d.Joined, m)
			}
		}
	}
	for _, m := range before {
		if _, ok := was[m.UserID]; ok {
			if _, still := is[m.UserID]; !still {
				d.Left = append(d.Left, m)
			}
		}
	}
	return d
}

func activeSet(members []api.Member) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(members))
	for _, m := range members {
		if m.Status.IsActive() {
			set[m.UserID] = struct{}{}
		}
	}
	return set
}
