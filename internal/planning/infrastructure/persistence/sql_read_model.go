package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/caravan/internal/planning/application/queries"
	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLReadModel implements queries.ReadModel with joins over plans,
// memberships and users.
type SQLReadModel struct {
	conn database.Connection
}

// NewSQLReadModel creates a new read model.
func NewSQLReadModel(conn database.Connection) *SQLReadModel {
	return &SQLReadModel{conn: conn}
}

var _ queries.ReadModel = (*SQLReadModel)(nil)

// summarySelect needs the active statuses and then the viewer ID as its
// leading arguments.
func summarySelect() string {
	return `SELECT p.id, p.owner_id, u.first_name, u.last_name, p.title, p.category, p.visibility,
    p.destination, p.start_date, p.end_date, p.status, p.max_members, p.image_paths, p.updated_at,
    (SELECT COUNT(*) FROM memberships a WHERE a.plan_id = p.id AND a.status IN (` +
		placeholders(len(domain.ActiveStatuses())) + `)) AS active_count,
    COALESCE((SELECT v.status FROM memberships v WHERE v.plan_id = p.id AND v.user_id = ?), '') AS viewer_status
    FROM travel_plans p JOIN users u ON u.id = p.owner_id`
}

func summaryArgs(viewerID uuid.UUID) []any {
	return append(statusArgs(domain.ActiveStatuses()), viewerID.String())
}

func (r *SQLReadModel) Discoverable(ctx context.Context, viewerID uuid.UUID, keyword string, limit int) ([]queries.PlanSummaryDTO, error) {
	query := summarySelect() + `
    WHERE p.status = ? AND p.visibility = ?
      AND NOT EXISTS (SELECT 1 FROM memberships x WHERE x.plan_id = p.id AND x.user_id = ?)`
	args := append(summaryArgs(viewerID), string(domain.PlanNew), string(domain.VisibilityPublic), viewerID.String())

	if keyword != "" {
		like := "%" + strings.ToLower(keyword) + "%"
		query += ` AND (LOWER(p.title) LIKE ? OR LOWER(p.destination) LIKE ? OR LOWER(p.category) LIKE ?)`
		args = append(args, like, like, like)
	}
	query += ` ORDER BY p.start_date, p.id LIMIT ?`
	args = append(args, limit)

	return r.list(ctx, query, args...)
}

func (r *SQLReadModel) Current(ctx context.Context, userID uuid.UUID) ([]queries.PlanSummaryDTO, error) {
	current := domain.CurrentStatuses()
	query := summarySelect() + `
    WHERE p.status IN (?, ?)
      AND EXISTS (SELECT 1 FROM memberships x WHERE x.plan_id = p.id AND x.user_id = ? AND x.status IN (` +
		placeholders(len(current)) + `))
    ORDER BY p.start_date, p.id`
	args := append(summaryArgs(userID), string(domain.PlanNew), string(domain.PlanInProgress), userID.String())
	args = append(args, statusArgs(current)...)

	return r.list(ctx, query, args...)
}

func (r *SQLReadModel) History(ctx context.Context, userID uuid.UUID) ([]queries.PlanSummaryDTO, error) {
	terminal := terminalStatuses()
	query := summarySelect() + `
    WHERE EXISTS (SELECT 1 FROM memberships x WHERE x.plan_id = p.id AND x.user_id = ?
      AND (p.status IN (?, ?) OR x.status IN (` + placeholders(len(terminal)) + `)))
    ORDER BY p.start_date DESC, p.id`
	args := append(summaryArgs(userID), userID.String(), string(domain.PlanCompleted), string(domain.PlanCancelled))
	args = append(args, statusArgs(terminal)...)

	return r.list(ctx, query, args...)
}

func (r *SQLReadModel) Members(ctx context.Context, planID uuid.UUID) ([]queries.MemberDTO, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `SELECT m.user_id, u.first_name, u.last_name,
    u.avatar_path, m.status, m.updated_at
    FROM memberships m JOIN users u ON u.id = m.user_id
    WHERE m.plan_id = ?
    ORDER BY m.created_at, m.user_id`, planID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []queries.MemberDTO{}
	for rows.Next() {
		var (
			m              queries.MemberDTO
			userID, status string
			updated        time.Time
		)
		if err := rows.Scan(&userID, &m.FirstName, &m.LastName, &m.AvatarPath, &status, &updated); err != nil {
			return nil, err
		}
		if m.UserID, err = uuid.Parse(userID); err != nil {
			return nil, err
		}
		m.Status = domain.MembershipStatus(status)
		m.UpdatedAt = updated.UTC()
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *SQLReadModel) list(ctx context.Context, query string, args ...any) ([]queries.PlanSummaryDTO, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []queries.PlanSummaryDTO{}
	for rows.Next() {
		var (
			p                          queries.PlanSummaryDTO
			id, ownerID, first, last   string
			visibility, status, viewer string
			images                     string
		)
		err := rows.Scan(&id, &ownerID, &first, &last, &p.Title, &p.Category, &visibility, &p.Destination,
			&p.StartDate, &p.EndDate, &status, &p.MaxMembers, &images, &p.UpdatedAt, &p.ActiveCount, &viewer)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan summary: %w", err)
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if p.OwnerID, err = uuid.Parse(ownerID); err != nil {
			return nil, err
		}
		if p.ImagePaths, err = decodeList(images); err != nil {
			return nil, err
		}
		p.OwnerName = strings.TrimSpace(first + " " + last)
		p.Visibility = domain.Visibility(visibility)
		p.Status = domain.PlanStatus(status)
		p.ViewerStatus = domain.MembershipStatus(viewer)
		p.StartDate = p.StartDate.UTC()
		p.EndDate = p.EndDate.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func terminalStatuses() []domain.MembershipStatus {
	var out []domain.MembershipStatus
	for _, s := range domain.AllMembershipStatuses {
		if s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}
