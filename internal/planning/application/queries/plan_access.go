package queries

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// PlanAccessHandler exposes membership standing to the collaboration
// contexts.
type PlanAccessHandler struct {
	plans       domain.PlanRepository
	memberships domain.MembershipRepository
}

// NewPlanAccessHandler creates a new PlanAccessHandler.
func NewPlanAccessHandler(plans domain.PlanRepository, memberships domain.MembershipRepository) *PlanAccessHandler {
	return &PlanAccessHandler{plans: plans, memberships: memberships}
}

var _ sharedApplication.PlanAccessChecker = (*PlanAccessHandler)(nil)

// PlanAccess reports the user's standing on the plan.
func (h *PlanAccessHandler) PlanAccess(ctx context.Context, planID, userID uuid.UUID) (sharedApplication.PlanAccess, error) {
	plan, err := h.plans.FindByID(ctx, planID)
	if err != nil {
		return sharedApplication.PlanAccess{}, err
	}
	access := sharedApplication.PlanAccess{InProgress: plan.Status() == domain.PlanInProgress}

	m, err := h.memberships.Find(ctx, planID, userID)
	switch {
	case errors.Is(err, domain.ErrMembershipNotFound):
		return access, nil
	case err != nil:
		return sharedApplication.PlanAccess{}, err
	}
	access.Member = true
	access.Active = m.IsActive()
	return access, nil
}

// ActiveMembers lists the users whose membership counts toward capacity.
func (h *PlanAccessHandler) ActiveMembers(ctx context.Context, planID uuid.UUID) ([]uuid.UUID, error) {
	all, err := h.memberships.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	var out []uuid.UUID
	for _, m := range all {
		if m.IsActive() {
			out = append(out, m.UserID())
		}
	}
	return out, nil
}
