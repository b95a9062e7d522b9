package domain

import (
	"github.com/google/uuid"

	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
)

const (
	AggregateType = "SharedExpense"

	RoutingKeyExpenseRecorded = "expenses.expense.recorded"
	RoutingKeyAllocationPaid  = "expenses.allocation.paid"
)

// ExpenseChanged is recorded when an expense is added or settled.
type ExpenseChanged struct {
	sharedDomain.BaseEvent
	PlanID       uuid.UUID   `json:"plan_id"`
	PayerID      uuid.UUID   `json:"payer_id"`
	Description  string      `json:"description"`
	TotalMinor   int64       `json:"total_minor"`
	Currency     string      `json:"currency"`
	Participants []uuid.UUID `json:"participants"`
	SettledBy    uuid.UUID   `json:"settled_by,omitempty"`
}

func newExpenseEvent(e *Expense, routingKey string, settledBy uuid.UUID) *ExpenseChanged {
	return &ExpenseChanged{
		BaseEvent:    sharedDomain.NewBaseEvent(e.ID(), AggregateType, routingKey),
		PlanID:       e.spec.PlanID,
		PayerID:      e.spec.PayerID,
		Description:  e.spec.Description,
		TotalMinor:   e.spec.TotalMinor,
		Currency:     e.spec.Currency,
		Participants: e.Participants(),
		SettledBy:    settledBy,
	}
}
