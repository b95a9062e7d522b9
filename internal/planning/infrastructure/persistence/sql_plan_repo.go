package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLPlanRepository implements domain.PlanRepository on either driver.
type SQLPlanRepository struct {
	conn database.Connection
}

// NewSQLPlanRepository creates a new plan repository.
func NewSQLPlanRepository(conn database.Connection) *SQLPlanRepository {
	return &SQLPlanRepository{conn: conn}
}

const upsertPlan = `INSERT INTO travel_plans (
    id, owner_id, title, description, category, visibility, origin, destination,
    destination_timezone, start_date, end_date, transportation, accommodation, estimated_budget,
    min_members, max_members, gender_preference, min_age, max_age, languages, image_paths,
    status, cancellation_reason, started_at, completed_at, cancelled_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    category = excluded.category,
    visibility = excluded.visibility,
    origin = excluded.origin,
    destination = excluded.destination,
    destination_timezone = excluded.destination_timezone,
    start_date = excluded.start_date,
    end_date = excluded.end_date,
    transportation = excluded.transportation,
    accommodation = excluded.accommodation,
    estimated_budget = excluded.estimated_budget,
    min_members = excluded.min_members,
    max_members = excluded.max_members,
    gender_preference = excluded.gender_preference,
    min_age = excluded.min_age,
    max_age = excluded.max_age,
    languages = excluded.languages,
    image_paths = excluded.image_paths,
    status = excluded.status,
    cancellation_reason = excluded.cancellation_reason,
    started_at = excluded.started_at,
    completed_at = excluded.completed_at,
    cancelled_at = excluded.cancelled_at,
    updated_at = excluded.updated_at`

// Save inserts or updates the plan row.
func (r *SQLPlanRepository) Save(ctx context.Context, plan *domain.Plan) error {
	s := plan.State()
	languages, err := encodeList(s.Spec.Languages)
	if err != nil {
		return err
	}
	images, err := encodeList(s.Spec.ImagePaths)
	if err != nil {
		return err
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err = exec.Exec(ctx, upsertPlan,
		s.ID.String(), s.OwnerID.String(), s.Spec.Title, s.Spec.Description, s.Spec.Category,
		string(s.Spec.Visibility), s.Spec.Origin, s.Spec.Destination, s.Spec.DestinationTimezone,
		s.Spec.StartDate.UTC(), s.Spec.EndDate.UTC(), s.Spec.Transportation, s.Spec.Accommodation,
		s.Spec.EstimatedBudget, s.Spec.MinMembers, s.Spec.MaxMembers, s.Spec.GenderPreference,
		s.Spec.MinAge, s.Spec.MaxAge, languages, images,
		string(s.Status), s.CancellationReason, nullTime(s.StartedAt), nullTime(s.CompletedAt),
		nullTime(s.CancelledAt), s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

const selectPlan = `SELECT id, owner_id, title, description, category, visibility, origin, destination,
    destination_timezone, start_date, end_date, transportation, accommodation, estimated_budget,
    min_members, max_members, gender_preference, min_age, max_age, languages, image_paths,
    status, cancellation_reason, started_at, completed_at, cancelled_at, created_at, updated_at
    FROM travel_plans WHERE id = ?`

// FindByID loads a plan without locking it.
func (r *SQLPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	return scanPlan(exec.QueryRow(ctx, selectPlan, id.String()))
}

// LockForUpdate loads the plan with FOR UPDATE on PostgreSQL. SQLite has a
// single connection, so the open transaction already excludes other writers.
func (r *SQLPlanRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	query := selectPlan
	if r.conn.Driver() == database.DriverPostgres {
		query += " FOR UPDATE"
	}
	exec := database.ExecutorFromContext(ctx, r.conn)
	return scanPlan(exec.QueryRow(ctx, query, id.String()))
}

func (r *SQLPlanRepository) DueToStart(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.due(ctx, `SELECT id FROM travel_plans WHERE status = ? AND start_date <= ? ORDER BY start_date`,
		string(domain.PlanNew), now.UTC())
}

func (r *SQLPlanRepository) DueToComplete(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.due(ctx, `SELECT id FROM travel_plans WHERE status = ? AND end_date <= ? ORDER BY end_date`,
		string(domain.PlanInProgress), now.UTC())
}

func (r *SQLPlanRepository) due(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list due plans: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanPlan(row database.Row) (*domain.Plan, error) {
	var (
		s                          domain.PlanState
		id, ownerID                string
		visibility, status         string
		languages, images          string
		started, completed, closed sql.NullTime
	)
	err := row.Scan(&id, &ownerID, &s.Spec.Title, &s.Spec.Description, &s.Spec.Category, &visibility,
		&s.Spec.Origin, &s.Spec.Destination, &s.Spec.DestinationTimezone, &s.Spec.StartDate, &s.Spec.EndDate,
		&s.Spec.Transportation, &s.Spec.Accommodation, &s.Spec.EstimatedBudget, &s.Spec.MinMembers,
		&s.Spec.MaxMembers, &s.Spec.GenderPreference, &s.Spec.MinAge, &s.Spec.MaxAge, &languages, &images,
		&status, &s.CancellationReason, &started, &completed, &closed, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if s.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return nil, err
	}
	s.Spec.Visibility = domain.Visibility(visibility)
	s.Status = domain.PlanStatus(status)
	if s.Spec.Languages, err = decodeList(languages); err != nil {
		return nil, err
	}
	if s.Spec.ImagePaths, err = decodeList(images); err != nil {
		return nil, err
	}
	s.Spec.StartDate = s.Spec.StartDate.UTC()
	s.Spec.EndDate = s.Spec.EndDate.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	s.StartedAt = timePtr(started)
	s.CompletedAt = timePtr(completed)
	s.CancelledAt = timePtr(closed)
	return domain.RehydratePlan(s), nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(raw), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
