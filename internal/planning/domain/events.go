package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
)

// AggregateType tags every planning event.
const AggregateType = "TravelPlan"

// Routing keys.
const (
	RoutingKeyPlanCreated   = "planning.plan.created"
	RoutingKeyPlanStarted   = "planning.plan.started"
	RoutingKeyPlanCompleted = "planning.plan.completed"
	RoutingKeyPlanClosed    = "planning.plan.closed"

	RoutingKeyMemberApplied   = "planning.membership.applied"
	RoutingKeyMemberCancelled = "planning.membership.cancelled"
	RoutingKeyMemberAccepted  = "planning.membership.accepted"
	RoutingKeyMemberRefused   = "planning.membership.refused"
	RoutingKeyMemberInvited   = "planning.membership.invited"
)

// PlanCreated is recorded with the owner's membership.
type PlanCreated struct {
	sharedDomain.BaseEvent
	OwnerID    uuid.UUID  `json:"owner_id"`
	Title      string     `json:"title"`
	Visibility Visibility `json:"visibility"`
	MaxMembers int        `json:"max_members"`
	StartDate  time.Time  `json:"start_date"`
}

// PlanStarted lists the active members and the pending users refused as
// the plan began.
type PlanStarted struct {
	sharedDomain.BaseEvent
	OwnerID   uuid.UUID   `json:"owner_id"`
	Title     string      `json:"title"`
	Members   []uuid.UUID `json:"members"`
	Refused   []uuid.UUID `json:"refused"`
	Automatic bool        `json:"automatic"`
}

// PlanCompletedEvent lists the members of a finished plan.
type PlanCompletedEvent struct {
	sharedDomain.BaseEvent
	OwnerID uuid.UUID   `json:"owner_id"`
	Title   string      `json:"title"`
	Members []uuid.UUID `json:"members"`
}

// PlanClosed carries the current members other than the owner, who are
// told why the plan was cancelled.
type PlanClosed struct {
	sharedDomain.BaseEvent
	OwnerID    uuid.UUID   `json:"owner_id"`
	Title      string      `json:"title"`
	Reason     string      `json:"reason"`
	Recipients []uuid.UUID `json:"recipients"`
}

// MembershipChanged records one status edge. The routing key names the
// verb; From and To tell applications and invitations apart.
type MembershipChanged struct {
	sharedDomain.BaseEvent
	UserID  uuid.UUID        `json:"user_id"`
	OwnerID uuid.UUID        `json:"owner_id"`
	Title   string           `json:"title"`
	From    MembershipStatus `json:"from,omitempty"`
	To      MembershipStatus `json:"to"`
}

func membershipRoutingKey(to MembershipStatus) string {
	switch to {
	case StatusApplied:
		return RoutingKeyMemberApplied
	case StatusInvited:
		return RoutingKeyMemberInvited
	case StatusAppliedCancelled:
		return RoutingKeyMemberCancelled
	case StatusAppliedAccepted, StatusInvitedAccepted:
		return RoutingKeyMemberAccepted
	default:
		return RoutingKeyMemberRefused
	}
}
