package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/caravan/internal/expenses/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLExpenseRepository implements domain.ExpenseRepository.
type SQLExpenseRepository struct {
	conn database.Connection
}

// NewSQLExpenseRepository creates a new expense repository.
func NewSQLExpenseRepository(conn database.Connection) *SQLExpenseRepository {
	return &SQLExpenseRepository{conn: conn}
}

var _ domain.ExpenseRepository = (*SQLExpenseRepository)(nil)

const upsertExpense = `INSERT INTO expenses (id, plan_id, payer_id, description, purpose, total_minor, currency,
        expense_date, receipt_path, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at`

const upsertAllocation = `INSERT INTO expense_allocations (id, expense_id, user_id, amount_minor, paid, paid_at)
    VALUES (?, ?, ?, ?, ?, ?)
    ON CONFLICT (id) DO UPDATE SET
        paid = excluded.paid,
        paid_at = excluded.paid_at`

func (r *SQLExpenseRepository) Save(ctx context.Context, e *domain.Expense) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	s := e.Spec()
	_, err := exec.Exec(ctx, upsertExpense,
		e.ID().String(), s.PlanID.String(), s.PayerID.String(), s.Description, s.Purpose, s.TotalMinor,
		s.Currency, s.ExpenseDate.UTC(), s.ReceiptPath, e.CreatedAt().UTC(), e.UpdatedAt().UTC())
	if err != nil {
		return fmt.Errorf("failed to save expense: %w", err)
	}
	for _, a := range e.Allocations() {
		_, err := exec.Exec(ctx, upsertAllocation,
			a.ID.String(), e.ID().String(), a.UserID.String(), a.AmountMinor, a.Paid, nullTime(a.PaidAt))
		if err != nil {
			return fmt.Errorf("failed to save allocation: %w", err)
		}
	}
	return nil
}

const selectExpense = `SELECT id, plan_id, payer_id, description, purpose, total_minor, currency,
        expense_date, receipt_path, created_at, updated_at
    FROM expenses`

func (r *SQLExpenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	state, err := scanExpense(exec.QueryRow(ctx, selectExpense+` WHERE id = ?`, id.String()))
	if database.IsNoRows(err) {
		return nil, domain.ErrExpenseNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadAllocations(ctx, exec, state); err != nil {
		return nil, err
	}
	return domain.RehydrateExpense(*state), nil
}

func (r *SQLExpenseRepository) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Expense, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, selectExpense+` WHERE plan_id = ? ORDER BY expense_date DESC, created_at DESC`, planID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	var states []*domain.ExpenseState
	for rows.Next() {
		s, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]*domain.Expense, 0, len(states))
	for _, s := range states {
		if err := loadAllocations(ctx, exec, s); err != nil {
			return nil, err
		}
		out = append(out, domain.RehydrateExpense(*s))
	}
	return out, nil
}

func loadAllocations(ctx context.Context, exec database.Executor, s *domain.ExpenseState) error {
	rows, err := exec.Query(ctx,
		`SELECT id, user_id, amount_minor, paid, paid_at FROM expense_allocations WHERE expense_id = ? ORDER BY amount_minor DESC, id`,
		s.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load allocations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, userID string
			a          domain.Allocation
			paidAt     sql.NullTime
		)
		if err := rows.Scan(&id, &userID, &a.AmountMinor, &a.Paid, &paidAt); err != nil {
			return err
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return err
		}
		if a.UserID, err = uuid.Parse(userID); err != nil {
			return err
		}
		if paidAt.Valid {
			t := paidAt.Time.UTC()
			a.PaidAt = &t
		}
		s.Allocations = append(s.Allocations, a)
	}
	return rows.Err()
}

func scanExpense(row database.Row) (*domain.ExpenseState, error) {
	var (
		id, planID, payerID string
		s                   domain.ExpenseState
		expenseDate         time.Time
	)
	err := row.Scan(&id, &planID, &payerID, &s.Spec.Description, &s.Spec.Purpose, &s.Spec.TotalMinor,
		&s.Spec.Currency, &expenseDate, &s.Spec.ReceiptPath, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Spec.ExpenseDate = expenseDate.UTC()
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if s.Spec.PlanID, err = uuid.Parse(planID); err != nil {
		return nil, err
	}
	if s.Spec.PayerID, err = uuid.Parse(payerID); err != nil {
		return nil, err
	}
	return &s, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
