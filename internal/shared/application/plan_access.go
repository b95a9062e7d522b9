package application

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotMember         = errors.New("user is not a member of this plan")
	ErrNotActiveMember   = errors.New("user is not an active member of this plan")
	ErrPlanNotInProgress = errors.New("plan is not in progress")
)

// PlanAccess is a user's standing on one plan as seen by the chat, poll
// and expense features.
type PlanAccess struct {
	Member     bool
	Active     bool
	InProgress bool
}

// PlanAccessChecker answers membership questions about a plan. It returns
// the planning context's not-found error for unknown plans.
type PlanAccessChecker interface {
	PlanAccess(ctx context.Context, planID, userID uuid.UUID) (PlanAccess, error)
	ActiveMembers(ctx context.Context, planID uuid.UUID) ([]uuid.UUID, error)
}

// RequireCollaborator allows active members of an IN_PROGRESS plan.
func RequireCollaborator(ctx context.Context, checker PlanAccessChecker, planID, userID uuid.UUID) error {
	access, err := checker.PlanAccess(ctx, planID, userID)
	if err != nil {
		return err
	}
	switch {
	case !access.Member:
		return ErrNotMember
	case !access.Active:
		return ErrNotActiveMember
	case !access.InProgress:
		return ErrPlanNotInProgress
	}
	return nil
}

// RequireMember allows any membership row, including refused and
// cancelled ones, so former members keep read access to history.
func RequireMember(ctx context.Context, checker PlanAccessChecker, planID, userID uuid.UUID) error {
	access, err := checker.PlanAccess(ctx, planID, userID)
	if err != nil {
		return err
	}
	if !access.Member {
		return ErrNotMember
	}
	return nil
}
