package workers

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/caravan/internal/planning/application/commands"
	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/google/uuid"
)

// DefaultSchedulerInterval is the default interval between cycles.
const DefaultSchedulerInterval = time.Minute

// PlanStarter is satisfied by commands.StartPlanHandler.
type PlanStarter interface {
	Handle(ctx context.Context, cmd commands.StartPlanCommand) error
}

// PlanCompleter is satisfied by commands.CompletePlanHandler.
type PlanCompleter interface {
	Handle(ctx context.Context, cmd commands.CompletePlanCommand) error
}

// CycleResult counts what one cycle did.
type CycleResult struct {
	Started   int
	Completed int
	Failed    int
}

// LifecycleScheduler starts plans on their start date and completes them
// on their end date.
type LifecycleScheduler struct {
	plans     domain.PlanRepository
	starter   PlanStarter
	completer PlanCompleter
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLifecycleScheduler creates a new scheduler.
func NewLifecycleScheduler(
	plans domain.PlanRepository,
	starter PlanStarter,
	completer PlanCompleter,
	interval time.Duration,
	logger *slog.Logger,
) *LifecycleScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &LifecycleScheduler{
		plans:     plans,
		starter:   starter,
		completer: completer,
		interval:  interval,
		logger:    logger.With("component", "lifecycle_scheduler"),
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or Stop is called.
func (s *LifecycleScheduler) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)
	s.logger.Info("lifecycle scheduler started", "interval", s.interval)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("lifecycle scheduler stopped (context cancelled)")
			return ctx.Err()
		case <-s.stopCh:
			s.logger.Info("lifecycle scheduler stopped (stop signal)")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop signals the scheduler to stop.
func (s *LifecycleScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// IsRunning returns true while Run is looping.
func (s *LifecycleScheduler) IsRunning() bool {
	return s.running.Load()
}

// RunOnce processes every due plan. A failing plan is logged and skipped.
func (s *LifecycleScheduler) RunOnce(ctx context.Context) CycleResult {
	var result CycleResult
	now := s.now().UTC()

	toStart, err := s.plans.DueToStart(ctx, now)
	if err != nil {
		s.logger.Error("failed to list plans due to start", "error", err)
	}
	for _, id := range toStart {
		if err := s.starter.Handle(ctx, commands.StartPlanCommand{PlanID: id}); err != nil {
			s.logFailure("start", id, err)
			result.Failed++
			continue
		}
		result.Started++
	}

	toComplete, err := s.plans.DueToComplete(ctx, now)
	if err != nil {
		s.logger.Error("failed to list plans due to complete", "error", err)
	}
	for _, id := range toComplete {
		if err := s.completer.Handle(ctx, commands.CompletePlanCommand{PlanID: id}); err != nil {
			s.logFailure("complete", id, err)
			result.Failed++
			continue
		}
		result.Completed++
	}

	if result != (CycleResult{}) {
		s.logger.Info("lifecycle cycle finished",
			"started", result.Started,
			"completed", result.Completed,
			"failed", result.Failed,
		)
	}
	return result
}

func (s *LifecycleScheduler) logFailure(action string, planID uuid.UUID, err error) {
	s.logger.Warn("scheduled transition failed",
		"action", action,
		"plan_id", planID,
		"error", err,
	)
}
