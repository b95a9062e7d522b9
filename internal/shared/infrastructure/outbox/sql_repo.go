package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
)

// SQLRepository stores the outbox in the shared database. It runs on both
// drivers; writes join the unit of work carried in ctx.
type SQLRepository struct {
	conn database.Connection
}

// NewSQLRepository creates an outbox repository over conn.
func NewSQLRepository(conn database.Connection) *SQLRepository {
	return &SQLRepository{conn: conn}
}

const insertMessage = `INSERT INTO outbox
    (event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (r *SQLRepository) Save(ctx context.Context, msg *Message) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, insertMessage,
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID.String(),
		msg.EventType,
		msg.RoutingKey,
		string(msg.Payload),
		nullableJSON(msg.Metadata),
		msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save outbox message %s: %w", msg.EventID, err)
	}
	return nil
}

func (r *SQLRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

const selectMessages = `SELECT id, event_id, aggregate_type, aggregate_id, event_type, routing_key,
    payload, metadata, created_at, published_at, next_retry_at, retry_count, last_error,
    dead_lettered_at, dead_letter_reason
    FROM outbox`

func (r *SQLRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	rows, err := r.conn.Query(ctx, selectMessages+`
    WHERE published_at IS NULL AND dead_lettered_at IS NULL
      AND (next_retry_at IS NULL OR next_retry_at <= ?)
    ORDER BY id
    LIMIT ?`, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (r *SQLRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE outbox SET published_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

func (r *SQLRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := r.conn.Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ? WHERE id = ?`,
		errMsg, nextRetryAt.UTC(), id)
	return err
}

func (r *SQLRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := r.conn.Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, dead_lettered_at = ?, dead_letter_reason = ? WHERE id = ?`,
		time.Now().UTC(), reason, id)
	return err
}

func (r *SQLRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := r.conn.Exec(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanMessage(row database.Row) (*Message, error) {
	var (
		msg                          Message
		eventID, aggregateID         string
		payload                      string
		metadata, lastErr, deadCause sql.NullString
		published, nextRetry, dead   sql.NullTime
	)
	err := row.Scan(&msg.ID, &eventID, &msg.AggregateType, &aggregateID, &msg.EventType, &msg.RoutingKey,
		&payload, &metadata, &msg.CreatedAt, &published, &nextRetry, &msg.RetryCount, &lastErr,
		&dead, &deadCause)
	if err != nil {
		return nil, fmt.Errorf("scan outbox message: %w", err)
	}

	if msg.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("outbox event id: %w", err)
	}
	if msg.AggregateID, err = uuid.Parse(aggregateID); err != nil {
		return nil, fmt.Errorf("outbox aggregate id: %w", err)
	}
	msg.Payload = []byte(payload)
	if metadata.Valid {
		msg.Metadata = []byte(metadata.String)
	}
	msg.PublishedAt = timePtr(published)
	msg.NextRetryAt = timePtr(nextRetry)
	msg.DeadLetteredAt = timePtr(dead)
	if lastErr.Valid {
		msg.LastError = &lastErr.String
	}
	if deadCause.Valid {
		msg.DeadLetterReason = &deadCause.String
	}
	return &msg, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
