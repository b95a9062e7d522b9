package commands

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// InviteCommand invites a registered user, found by email, to a NEW plan.
type InviteCommand struct {
	PlanID  uuid.UUID
	OwnerID uuid.UUID
	Email   string
}

// InviteHandler handles the InviteCommand.
type InviteHandler struct {
	writer
	directory domain.UserDirectory
}

// NewInviteHandler creates a new InviteHandler.
func NewInviteHandler(deps Deps, directory domain.UserDirectory) *InviteHandler {
	return &InviteHandler{writer: newWriter(deps), directory: directory}
}

// Handle executes the InviteCommand.
func (h *InviteHandler) Handle(ctx context.Context, cmd InviteCommand) (*MembershipResult, error) {
	var result *MembershipResult

	err := sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		plan, err := h.lock(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		if !plan.IsOwner(cmd.OwnerID) {
			return domain.ErrNotOwner
		}
		if plan.Status() != domain.PlanNew {
			return domain.ErrPlanNotOpen
		}

		inviteeID, err := h.directory.FindIDByEmail(txCtx, strings.TrimSpace(cmd.Email))
		if err != nil {
			return err
		}
		if err := h.ensureFresh(txCtx, plan.ID(), inviteeID); err != nil {
			return err
		}
		if err := h.ensureNoCurrentPlan(txCtx, inviteeID); err != nil {
			return err
		}

		m, err := plan.Invite(inviteeID)
		if err != nil {
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
