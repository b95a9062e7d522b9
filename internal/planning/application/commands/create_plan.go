package commands

import (
	"context"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// CreatePlanCommand contains the data needed to create a plan.
type CreatePlanCommand struct {
	OwnerID uuid.UUID
	Spec    domain.PlanSpec
}

// CreatePlanResult contains the result of creating a plan.
type CreatePlanResult struct {
	PlanID uuid.UUID
}

// CreatePlanHandler handles the CreatePlanCommand.
type CreatePlanHandler struct {
	writer
}

// NewCreatePlanHandler creates a new CreatePlanHandler.
func NewCreatePlanHandler(deps Deps) *CreatePlanHandler {
	return &CreatePlanHandler{writer: newWriter(deps)}
}

// Handle creates the plan and its OWNED membership in one transaction.
func (h *CreatePlanHandler) Handle(ctx context.Context, cmd CreatePlanCommand) (*CreatePlanResult, error) {
	var result *CreatePlanResult

	err := sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		if err := h.ensureNoCurrentPlan(txCtx, cmd.OwnerID); err != nil {
			return err
		}

		plan, owner, err := domain.NewPlan(cmd.OwnerID, cmd.Spec)
		if err != nil {
			return err
		}
		if err := h.persist(txCtx, cmd.OwnerID, plan, owner); err != nil {
			return err
		}

		result = &CreatePlanResult{PlanID: plan.ID()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
