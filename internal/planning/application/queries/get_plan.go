package queries

import (
	"context"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/google/uuid"
)

// GetPlanQuery loads one plan for a viewer.
type GetPlanQuery struct {
	PlanID   uuid.UUID
	ViewerID uuid.UUID
}

// GetPlanHandler handles the GetPlanQuery.
type GetPlanHandler struct {
	plans     domain.PlanRepository
	readModel ReadModel
}

// NewGetPlanHandler creates a new GetPlanHandler.
func NewGetPlanHandler(plans domain.PlanRepository, readModel ReadModel) *GetPlanHandler {
	return &GetPlanHandler{plans: plans, readModel: readModel}
}

// Handle returns the plan and the members the viewer may see. The owner
// sees every membership; anyone else sees active members and their own
// row. A private plan is hidden from users with no membership on it.
func (h *GetPlanHandler) Handle(ctx context.Context, query GetPlanQuery) (*PlanDetailDTO, error) {
	plan, err := h.plans.FindByID(ctx, query.PlanID)
	if err != nil {
		return nil, err
	}
	members, err := h.readModel.Members(ctx, plan.ID())
	if err != nil {
		return nil, err
	}

	detail := &PlanDetailDTO{Plan: toPlanDTO(plan), Members: []MemberDTO{}}
	isOwner := plan.IsOwner(query.ViewerID)
	for _, m := range members {
		if m.Status.IsActive() {
			detail.ActiveCount++
		}
		if m.UserID == query.ViewerID {
			detail.ViewerStatus = m.Status
		}
		if isOwner || m.Status.IsActive() || m.UserID == query.ViewerID {
			detail.Members = append(detail.Members, m)
		}
	}

	if plan.Visibility() == domain.VisibilityPrivate && detail.ViewerStatus == "" {
		return nil, domain.ErrPlanNotFound
	}
	detail.CanCollaborate = detail.ViewerStatus.IsActive() && plan.Status() == domain.PlanInProgress
	return detail, nil
}

// CheckCurrentQuery asks whether a user already has a current plan.
type CheckCurrentQuery struct {
	UserID uuid.UUID
}

// CheckCurrentHandler handles the CheckCurrentQuery.
type CheckCurrentHandler struct {
	memberships domain.MembershipRepository
}

// NewCheckCurrentHandler creates a new CheckCurrentHandler.
func NewCheckCurrentHandler(memberships domain.MembershipRepository) *CheckCurrentHandler {
	return &CheckCurrentHandler{memberships: memberships}
}

// Handle executes the CheckCurrentQuery.
func (h *CheckCurrentHandler) Handle(ctx context.Context, query CheckCurrentQuery) (bool, error) {
	return h.memberships.HasCurrentPlan(ctx, query.UserID)
}
