package domain

import (
	"github.com/google/uuid"

	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
)

const (
	AggregateType = "Poll"

	RoutingKeyPollCreated = "polls.poll.created"
	RoutingKeyPollVoted   = "polls.poll.voted"
	RoutingKeyPollClosed  = "polls.poll.closed"
)

// PollChanged is recorded whenever a poll's state moves. The plan ID lets
// subscribers route a refresh hint to the plan's watchers.
type PollChanged struct {
	sharedDomain.BaseEvent
	PlanID   uuid.UUID `json:"plan_id"`
	Question string    `json:"question"`
	Active   bool      `json:"active"`
}

func newPollEvent(p *Poll, routingKey string) *PollChanged {
	return &PollChanged{
		BaseEvent: sharedDomain.NewBaseEvent(p.ID(), AggregateType, routingKey),
		PlanID:    p.planID,
		Question:  p.question,
		Active:    p.active,
	}
}
