package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLMembershipRepository implements domain.MembershipRepository.
type SQLMembershipRepository struct {
	conn database.Connection
}

// NewSQLMembershipRepository creates a new membership repository.
func NewSQLMembershipRepository(conn database.Connection) *SQLMembershipRepository {
	return &SQLMembershipRepository{conn: conn}
}

const upsertMembership = `INSERT INTO memberships (plan_id, user_id, status, created_at, updated_at, decided_at)
    VALUES (?, ?, ?, ?, ?, ?)
    ON CONFLICT (plan_id, user_id) DO UPDATE SET
        status = excluded.status,
        updated_at = excluded.updated_at,
        decided_at = excluded.decided_at`

func (r *SQLMembershipRepository) Save(ctx context.Context, m *domain.Membership) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, upsertMembership,
		m.PlanID().String(), m.UserID().String(), string(m.Status()),
		m.CreatedAt().UTC(), m.UpdatedAt().UTC(), nullTime(m.DecidedAt()))
	if err != nil {
		return fmt.Errorf("failed to save membership: %w", err)
	}
	return nil
}

const selectMembership = `SELECT plan_id, user_id, status, created_at, updated_at, decided_at FROM memberships`

func (r *SQLMembershipRepository) Find(ctx context.Context, planID, userID uuid.UUID) (*domain.Membership, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	m, err := scanMembership(exec.QueryRow(ctx, selectMembership+` WHERE plan_id = ? AND user_id = ?`,
		planID.String(), userID.String()))
	if database.IsNoRows(err) {
		return nil, domain.ErrMembershipNotFound
	}
	return m, err
}

func (r *SQLMembershipRepository) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Membership, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, selectMembership+` WHERE plan_id = ? ORDER BY created_at, user_id`, planID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var out []*domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLMembershipRepository) CountActive(ctx context.Context, planID uuid.UUID) (int, error) {
	statuses := domain.ActiveStatuses()
	args := append([]any{planID.String()}, statusArgs(statuses)...)

	var n int
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT COUNT(*) FROM memberships WHERE plan_id = ? AND status IN (`+placeholders(len(statuses))+`)`,
		args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active members: %w", err)
	}
	return n, nil
}

// userLockClass namespaces the advisory locks taken by LockUser.
const userLockClass = 0x636172

// LockUser takes a transaction-scoped advisory lock keyed on the user on
// PostgreSQL. SQLite has a single connection, so the open transaction
// already excludes other writers.
func (r *SQLMembershipRepository) LockUser(ctx context.Context, userID uuid.UUID) error {
	if r.conn.Driver() != database.DriverPostgres {
		return nil
	}
	exec := database.ExecutorFromContext(ctx, r.conn)
	if _, err := exec.Exec(ctx, `SELECT pg_advisory_xact_lock(?::int, hashtext(?::text))`, userLockClass, userID.String()); err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}

func (r *SQLMembershipRepository) HasCurrentPlan(ctx context.Context, userID uuid.UUID) (bool, error) {
	statuses := domain.CurrentStatuses()
	args := append([]any{userID.String()}, statusArgs(statuses)...)
	args = append(args, string(domain.PlanNew), string(domain.PlanInProgress))

	var n int
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, `SELECT COUNT(*)
    FROM memberships m JOIN travel_plans p ON p.id = m.plan_id
    WHERE m.user_id = ? AND m.status IN (`+placeholders(len(statuses))+`) AND p.status IN (?, ?)`,
		args...).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check current plan: %w", err)
	}
	return n > 0, nil
}

func scanMembership(row database.Row) (*domain.Membership, error) {
	var (
		planID, userID, status string
		created, updated       time.Time
		decided                sql.NullTime
	)
	if err := row.Scan(&planID, &userID, &status, &created, &updated, &decided); err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(planID)
	if err != nil {
		return nil, err
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	return domain.RehydrateMembership(pid, uid, domain.MembershipStatus(status), created, updated, timePtr(decided)), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func statusArgs(statuses []domain.MembershipStatus) []any {
	out := make([]any, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
