package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/caravan/internal/polls/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// OptionDTO is an answer with its vote count.
type OptionDTO struct {
	ID    uuid.UUID `json:"id"`
	Text  string    `json:"text"`
	Votes int       `json:"votes"`
}

// PollDTO is a poll as shown to one viewer.
type PollDTO struct {
	ID         uuid.UUID   `json:"id"`
	PlanID     uuid.UUID   `json:"planId"`
	CreatorID  uuid.UUID   `json:"creatorId"`
	Question   string      `json:"question"`
	Active     bool        `json:"active"`
	Options    []OptionDTO `json:"options"`
	TotalVotes int         `json:"totalVotes"`
	ViewerVote *uuid.UUID  `json:"viewerVote,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// ListPollsQuery lists the polls of a plan.
type ListPollsQuery struct {
	PlanID   uuid.UUID
	ViewerID uuid.UUID
}

// ListPollsHandler handles the ListPollsQuery.
type ListPollsHandler struct {
	polls  domain.PollRepository
	access sharedApplication.PlanAccessChecker
}

// NewListPollsHandler creates a new ListPollsHandler.
func NewListPollsHandler(polls domain.PollRepository, access sharedApplication.PlanAccessChecker) *ListPollsHandler {
	return &ListPollsHandler{polls: polls, access: access}
}

// Handle returns the plan's polls, newest first, to any member.
func (h *ListPollsHandler) Handle(ctx context.Context, query ListPollsQuery) ([]PollDTO, error) {
	if err := sharedApplication.RequireMember(ctx, h.access, query.PlanID, query.ViewerID); err != nil {
		return nil, err
	}
	polls, err := h.polls.ListByPlan(ctx, query.PlanID)
	if err != nil {
		return nil, err
	}
	out := make([]PollDTO, 0, len(polls))
	for _, p := range polls {
		out = append(out, toPollDTO(p, query.ViewerID))
	}
	return out, nil
}

func toPollDTO(p *domain.Poll, viewerID uuid.UUID) PollDTO {
	tally := p.Tally()
	dto := PollDTO{
		ID:         p.ID(),
		PlanID:     p.PlanID(),
		CreatorID:  p.CreatorID(),
		Question:   p.Question(),
		Active:     p.IsActive(),
		Options:    make([]OptionDTO, 0, len(p.Options())),
		TotalVotes: len(p.Votes()),
		CreatedAt:  p.CreatedAt(),
	}
	for _, o := range p.Options() {
		dto.Options = append(dto.Options, OptionDTO{ID: o.ID, Text: o.Text, Votes: tally[o.ID]})
	}
	if v, ok := p.VoteOf(viewerID); ok {
		choice := v.OptionID
		dto.ViewerVote = &choice
	}
	return dto
}
