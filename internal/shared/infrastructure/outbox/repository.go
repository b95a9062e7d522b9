package outbox

import (
	"context"
	"time"
)

// Repository persists outbox messages.
type Repository interface {
	// Save stores a message, joining any transaction in ctx.
	Save(ctx context.Context, msg *Message) error

	// SaveBatch stores messages in the caller's transaction.
	SaveBatch(ctx context.Context, msgs []*Message) error

	// GetUnpublished returns messages due for publishing, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)

	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string) error

	// DeleteOld removes published messages older than the retention period.
	DeleteOld(ctx context.Context, olderThanDays int) (int64, error)
}
