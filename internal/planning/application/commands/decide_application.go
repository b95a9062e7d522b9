package commands

import (
	"context"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// DecideApplicationCommand is the owner's verdict on an application.
type DecideApplicationCommand struct {
	PlanID      uuid.UUID
	OwnerID     uuid.UUID
	ApplicantID uuid.UUID
	Decision    domain.Decision
}

// DecideApplicationHandler handles the DecideApplicationCommand.
type DecideApplicationHandler struct {
	writer
}

// NewDecideApplicationHandler creates a new DecideApplicationHandler.
func NewDecideApplicationHandler(deps Deps) *DecideApplicationHandler {
	return &DecideApplicationHandler{writer: newWriter(deps)}
}

// Handle re-counts active members under the plan lock, so two accepts
// racing for the last slot cannot both succeed.
func (h *DecideApplicationHandler) Handle(ctx context.Context, cmd DecideApplicationCommand) (*MembershipResult, error) {
	var result *MembershipResult

	err := sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		plan, err := h.lock(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		if !plan.IsOwner(cmd.OwnerID) {
			return domain.ErrNotOwner
		}
		m, err := h.Memberships.Find(txCtx, plan.ID(), cmd.ApplicantID)
		if err != nil {
			return err
		}
		active, err := h.Memberships.CountActive(txCtx, plan.ID())
		if err != nil {
			return err
		}
		if err := plan.DecideApplication(m, cmd.Decision, active); err != nil {
			return err
		}
		if err := h.persist(txCtx, cmd.OwnerID, plan, m); err != nil {
			return err
		}

		result = resultOf(m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
