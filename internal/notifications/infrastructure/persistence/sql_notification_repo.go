package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/caravan/internal/notifications/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLNotificationRepository implements domain.Repository.
type SQLNotificationRepository struct {
	conn database.Connection
}

// NewSQLNotificationRepository creates a new notification repository.
func NewSQLNotificationRepository(conn database.Connection) *SQLNotificationRepository {
	return &SQLNotificationRepository{conn: conn}
}

var _ domain.Repository = (*SQLNotificationRepository)(nil)

func (r *SQLNotificationRepository) Insert(ctx context.Context, n *domain.Notification) (bool, error) {
	planID := ""
	if n.PlanID != uuid.Nil {
		planID = n.PlanID.String()
	}
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
        INSERT INTO notifications (id, recipient_id, plan_id, kind, subject, body, event_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (event_id, recipient_id) DO NOTHING`,
		n.ID.String(), n.RecipientID.String(), planID, string(n.Kind),
		n.Subject, n.Body, n.EventID.String(), n.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SQLNotificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `SELECT id, recipient_id, plan_id, kind, subject, body, event_id, read_at, created_at
        FROM notifications WHERE recipient_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.conn.Query(ctx, query, recipientID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// MarkRead keeps the first read timestamp when called twice.
func (r *SQLNotificationRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error {
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND recipient_id = ?`,
		at.UTC(), id.String(), recipientID.String())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func scanNotification(row database.Row) (*domain.Notification, error) {
	var (
		n                             domain.Notification
		id, recipientID, planID, evID string
		kind                          string
		readAt                        sql.NullTime
	)
	if err := row.Scan(&id, &recipientID, &planID, &kind, &n.Subject, &n.Body, &evID, &readAt, &n.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	var err error
	if n.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if n.RecipientID, err = uuid.Parse(recipientID); err != nil {
		return nil, err
	}
	if n.EventID, err = uuid.Parse(evID); err != nil {
		return nil, err
	}
	if planID != "" {
		if n.PlanID, err = uuid.Parse(planID); err != nil {
			return nil, err
		}
	}
	n.Kind = domain.Kind(kind)
	n.CreatedAt = n.CreatedAt.UTC()
	if readAt.Valid {
		t := readAt.Time.UTC()
		n.ReadAt = &t
	}
	return &n, nil
}
