package domain

import (
	"context"

	"github.com/google/uuid"
)

// PollRepository persists polls with their options and votes.
type PollRepository interface {
	// Save upserts the poll row and inserts options not yet stored.
	Save(ctx context.Context, p *Poll) error
	// AddVote returns ErrAlreadyVoted when the user's vote already exists.
	AddVote(ctx context.Context, pollID uuid.UUID, v Vote) error
	FindByID(ctx context.Context, id uuid.UUID) (*Poll, error)
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]*Poll, error)
}
