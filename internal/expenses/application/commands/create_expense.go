package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/caravan/internal/expenses/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// Deps are the collaborators shared by the expense handlers.
type Deps struct {
	Expenses domain.ExpenseRepository
	Access   sharedApplication.PlanAccessChecker
	Outbox   outbox.Repository
	UoW      sharedApplication.UnitOfWork
}

func (d Deps) persist(ctx context.Context, actorID uuid.UUID, e *domain.Expense) error {
	events := e.DomainEvents()
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(ctx, actorID))
	if err := d.Expenses.Save(ctx, e); err != nil {
		return err
	}
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return fmt.Errorf("failed to build outbox messages: %w", err)
	}
	if err := d.Outbox.SaveBatch(ctx, msgs); err != nil {
		return err
	}
	e.ClearDomainEvents()
	return nil
}

// CreateExpenseCommand records a shared cost. With no Shares, the total is
// split equally over Participants, or over every active member when
// Participants is empty too.
type CreateExpenseCommand struct {
	PlanID       uuid.UUID
	PayerID      uuid.UUID
	Description  string
	Purpose      string
	TotalMinor   int64
	Currency     string
	ExpenseDate  time.Time
	ReceiptPath  string
	Participants []uuid.UUID
	Shares       []domain.Share
}

// CreateExpenseHandler handles the CreateExpenseCommand.
type CreateExpenseHandler struct {
	deps Deps
}

// NewCreateExpenseHandler creates a new CreateExpenseHandler.
func NewCreateExpenseHandler(deps Deps) *CreateExpenseHandler {
	return &CreateExpenseHandler{deps: deps}
}

// Handle returns the new expense's ID.
func (h *CreateExpenseHandler) Handle(ctx context.Context, cmd CreateExpenseCommand) (uuid.UUID, error) {
	if err := sharedApplication.RequireCollaborator(ctx, h.deps.Access, cmd.PlanID, cmd.PayerID); err != nil {
		return uuid.Nil, err
	}
	active, err := h.deps.Access.ActiveMembers(ctx, cmd.PlanID)
	if err != nil {
		return uuid.Nil, err
	}
	shares, err := sharesFor(cmd, active)
	if err != nil {
		return uuid.Nil, err
	}

	expense, err := domain.NewExpense(domain.ExpenseSpec{
		PlanID:      cmd.PlanID,
		PayerID:     cmd.PayerID,
		Description: cmd.Description,
		Purpose:     cmd.Purpose,
		TotalMinor:  cmd.TotalMinor,
		Currency:    cmd.Currency,
		ExpenseDate: cmd.ExpenseDate,
		ReceiptPath: cmd.ReceiptPath,
	}, shares)
	if err != nil {
		return uuid.Nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.deps.UoW, func(txCtx context.Context) error {
		return h.deps.persist(txCtx, cmd.PayerID, expense)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return expense.ID(), nil
}

func sharesFor(cmd CreateExpenseCommand, active []uuid.UUID) ([]domain.Share, error) {
	isActive := make(map[uuid.UUID]bool, len(active))
	for _, id := range active {
		isActive[id] = true
	}

	if len(cmd.Shares) > 0 {
		for _, s := range cmd.Shares {
			if !isActive[s.UserID] {
				return nil, fmt.Errorf("%w: %s", domain.ErrParticipantNotMember, s.UserID)
			}
		}
		return cmd.Shares, nil
	}

	participants := cmd.Participants
	if len(participants) == 0 {
		participants = active
	}
	for _, id := range participants {
		if !isActive[id] {
			return nil, fmt.Errorf("%w: %s", domain.ErrParticipantNotMember, id)
		}
	}
	return domain.EqualSplit(cmd.TotalMinor, participants, cmd.PayerID), nil
}
