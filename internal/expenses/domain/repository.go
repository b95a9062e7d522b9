package domain

import (
	"context"

	"github.com/google/uuid"
)

// ExpenseRepository persists expenses with their allocations.
type ExpenseRepository interface {
	Save(ctx context.Context, e *Expense) error
	FindByID(ctx context.Context, id uuid.UUID) (*Expense, error)
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]*Expense, error)
}
