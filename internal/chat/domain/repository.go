package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageRepository stores chat lines. Methods join the unit of work in ctx.
type MessageRepository interface {
	Save(ctx context.Context, m *Message) error

	// LatestSentAt returns the newest SentAt on the plan, or the zero time.
	LatestSentAt(ctx context.Context, planID uuid.UUID) (time.Time, error)
}
