package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlanRepository persists plans. Methods join the unit of work in ctx.
type PlanRepository interface {
	Save(ctx context.Context, plan *Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)

	// LockForUpdate loads the plan and holds its row lock until the
	// surrounding transaction ends, serializing capacity checks.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Plan, error)

	// DueToStart lists NEW plans whose start date is at or before now.
	DueToStart(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// DueToComplete lists IN_PROGRESS plans whose end date is at or before now.
	DueToComplete(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// MembershipRepository persists memberships keyed by (plan, user).
type MembershipRepository interface {
	Save(ctx context.Context, m *Membership) error
	Find(ctx context.Context, planID, userID uuid.UUID) (*Membership, error)
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]*Membership, error)
	CountActive(ctx context.Context, planID uuid.UUID) (int, error)

	// LockUser holds a per-user lock until the surrounding transaction
	// ends, so two writers cannot both pass HasCurrentPlan for one user.
	LockUser(ctx context.Context, userID uuid.UUID) error

	// HasCurrentPlan reports whether the user holds a current-set
	// membership on any NEW or IN_PROGRESS plan.
	HasCurrentPlan(ctx context.Context, userID uuid.UUID) (bool, error)
}

// UserDirectory resolves invitees by email.
type UserDirectory interface {
	FindIDByEmail(ctx context.Context, email string) (uuid.UUID, error)
}
