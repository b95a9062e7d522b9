package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/caravan/internal/expenses/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// AllocationDTO is one participant's share.
type AllocationDTO struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"userId"`
	AmountMinor int64      `json:"amountMinor"`
	Paid        bool       `json:"paid"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
}

// ExpenseDTO is an expense with its allocations.
type ExpenseDTO struct {
	ID          uuid.UUID       `json:"id"`
	PlanID      uuid.UUID       `json:"planId"`
	PayerID     uuid.UUID       `json:"payerId"`
	Description string          `json:"description"`
	Purpose     string          `json:"purpose,omitempty"`
	TotalMinor  int64           `json:"totalMinor"`
	Currency    string          `json:"currency"`
	ExpenseDate time.Time       `json:"expenseDate"`
	ReceiptPath string          `json:"receiptPath,omitempty"`
	Allocations []AllocationDTO `json:"allocations"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ListExpensesQuery lists a plan's expenses.
type ListExpensesQuery struct {
	PlanID   uuid.UUID
	ViewerID uuid.UUID
}

// ListExpensesHandler handles the ListExpensesQuery.
type ListExpensesHandler struct {
	expenses domain.ExpenseRepository
	access   sharedApplication.PlanAccessChecker
}

// NewListExpensesHandler creates a new ListExpensesHandler.
func NewListExpensesHandler(expenses domain.ExpenseRepository, access sharedApplication.PlanAccessChecker) *ListExpensesHandler {
	return &ListExpensesHandler{expenses: expenses, access: access}
}

func (h *ListExpensesHandler) Handle(ctx context.Context, query ListExpensesQuery) ([]ExpenseDTO, error) {
	if err := sharedApplication.RequireMember(ctx, h.access, query.PlanID, query.ViewerID); err != nil {
		return nil, err
	}
	expenses, err := h.expenses.ListByPlan(ctx, query.PlanID)
	if err != nil {
		return nil, err
	}
	out := make([]ExpenseDTO, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseDTO(e))
	}
	return out, nil
}

// SummaryQuery asks for one user's balance on a plan.
type SummaryQuery struct {
	PlanID uuid.UUID
	UserID uuid.UUID
}

// SummaryHandler handles the SummaryQuery.
type SummaryHandler struct {
	expenses domain.ExpenseRepository
	access   sharedApplication.PlanAccessChecker
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(expenses domain.ExpenseRepository, access sharedApplication.PlanAccessChecker) *SummaryHandler {
	return &SummaryHandler{expenses: expenses, access: access}
}

func (h *SummaryHandler) Handle(ctx context.Context, query SummaryQuery) ([]domain.Summary, error) {
	if err := sharedApplication.RequireMember(ctx, h.access, query.PlanID, query.UserID); err != nil {
		return nil, err
	}
	expenses, err := h.expenses.ListByPlan(ctx, query.PlanID)
	if err != nil {
		return nil, err
	}
	return domain.Summarize(expenses, query.UserID), nil
}

func toExpenseDTO(e *domain.Expense) ExpenseDTO {
	spec := e.Spec()
	dto := ExpenseDTO{
		ID:          e.ID(),
		PlanID:      spec.PlanID,
		PayerID:     spec.PayerID,
		Description: spec.Description,
		Purpose:     spec.Purpose,
		TotalMinor:  spec.TotalMinor,
		Currency:    spec.Currency,
		ExpenseDate: spec.ExpenseDate,
		ReceiptPath: spec.ReceiptPath,
		Allocations: make([]AllocationDTO, 0, len(e.Allocations())),
		CreatedAt:   e.CreatedAt(),
	}
	for _, a := range e.Allocations() {
		dto.Allocations = append(dto.Allocations, AllocationDTO{
			ID: a.ID, UserID: a.UserID, AmountMinor: a.AmountMinor, Paid: a.Paid, PaidAt: a.PaidAt,
		})
	}
	return dto
}
