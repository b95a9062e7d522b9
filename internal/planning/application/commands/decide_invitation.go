package commands

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// DecideInvitationCommand is the invitee's answer to an invitation.
type DecideInvitationCommand struct {
	PlanID    uuid.UUID
	InviteeID uuid.UUID
	Decision  domain.Decision
}

// DecideInvitationHandler handles the DecideInvitationCommand.
type DecideInvitationHandler struct {
	writer
}

// NewDecideInvitationHandler creates a new DecideInvitationHandler.
func NewDecideInvitationHandler(deps Deps) *DecideInvitationHandler {
	return &DecideInvitationHandler{writer: newWriter(deps)}
}

// Handle executes the DecideInvitationCommand.
func (h *DecideInvitationHandler) Handle(ctx context.Context, cmd DecideInvitationCommand) (*MembershipResult, error) {
	var result *MembershipResult

	err := sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		plan, err := h.lock(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		m, err := h.Memberships.Find(txCtx, plan.ID(), cmd.InviteeID)
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return domain.ErrNotInvitee
		}
		if err != nil {
			return err
		}
		if m.Status() == domain.StatusApplied || m.Status() == domain.StatusOwned {
			return domain.ErrNotInvitee
		}

		active, err := h.Memberships.CountActive(txCtx, plan.ID())
		if err != nil {
			return err
		}
		if err := plan.DecideInvitation(m, cmd.Decision, active); err != nil {
			return err
		}
		if err := h.persist(txCtx, cmd.InviteeID, plan, m); err != nil {
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
