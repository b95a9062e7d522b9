package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// PlanHint tells subscribers of /topic/plans/{planId} that something about
// the plan changed and should be fetched again.
type PlanHint struct {
	PlanID     uuid.UUID `json:"planId"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PlanRelay forwards plan-scoped domain events to the broker as hints.
type PlanRelay struct {
	broker *Broker
	logger *slog.Logger
}

// NewPlanRelay creates a relay onto broker.
func NewPlanRelay(broker *Broker, logger *slog.Logger) *PlanRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanRelay{broker: broker, logger: logger}
}

func (r *PlanRelay) EventTypes() []string {
	return []string{
		"planning.plan.*",
		"planning.membership.*",
		"polls.poll.*",
		"expenses.#",
	}
}

// Handle broadcasts the hint. Events from other aggregates carry the plan
// in their payload; plan and membership events use the aggregate id.
func (r *PlanRelay) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var scoped struct {
		PlanID uuid.UUID `json:"plan_id"`
	}
	planID := event.AggregateID
	if err := event.Decode(&scoped); err == nil && scoped.PlanID != uuid.Nil {
		planID = scoped.PlanID
	}

	body, err := json.Marshal(PlanHint{PlanID: planID, Event: event.RoutingKey, OccurredAt: event.OccurredAt})
	if err != nil {
		return err
	}
	n := r.broker.Broadcast(planTopicPrefix+planID.String(), body)
	r.logger.DebugContext(ctx, "plan hint relayed", "plan_id", planID, "event", event.RoutingKey, "subscribers", n)
	return nil
}
