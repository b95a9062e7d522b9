package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Membership is one user's standing on one plan, identified by the pair.
type Membership struct {
	planID    uuid.UUID
	userID    uuid.UUID
	status    MembershipStatus
	createdAt time.Time
	updatedAt time.Time
	decidedAt *time.Time
}

func newMembership(planID, userID uuid.UUID, status MembershipStatus) *Membership {
	now := time.Now().UTC()
	return &Membership{planID: planID, userID: userID, status: status, createdAt: now, updatedAt: now}
}

// RehydrateMembership rebuilds a stored membership.
func RehydrateMembership(planID, userID uuid.UUID, status MembershipStatus, createdAt, updatedAt time.Time, decidedAt *time.Time) *Membership {
	return &Membership{
		planID:    planID,
		userID:    userID,
		status:    status,
		createdAt: createdAt.UTC(),
		updatedAt: updatedAt.UTC(),
		decidedAt: decidedAt,
	}
}

func (m *Membership) PlanID() uuid.UUID        { return m.planID }
func (m *Membership) UserID() uuid.UUID        { return m.userID }
func (m *Membership) Status() MembershipStatus { return m.status }
func (m *Membership) CreatedAt() time.Time     { return m.createdAt }
func (m *Membership) UpdatedAt() time.Time     { return m.updatedAt }
func (m *Membership) DecidedAt() *time.Time    { return m.decidedAt }
func (m *Membership) IsActive() bool           { return m.status.IsActive() }

// Transition moves the membership along one edge of the status table.
func (m *Membership) Transition(to MembershipStatus) error {
	if !m.status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.status, to)
	}
	now := time.Now().UTC()
	m.status = to
	m.updatedAt = now
	m.decidedAt = &now
	return nil
}
