package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	MinOptions        = 2
	MaxOptions        = 10
	MaxQuestionLength = 300
	MaxOptionLength   = 120
)

var (
	ErrPollNotFound    = errors.New("poll not found")
	ErrOptionNotFound  = errors.New("poll option not found")
	ErrEmptyQuestion   = errors.New("question cannot be empty")
	ErrQuestionTooLong = errors.New("question is too long")
	ErrTooFewOptions   = errors.New("a poll needs at least 2 options")
	ErrTooManyOptions  = errors.New("a poll allows at most 10 options")
	ErrInvalidOption   = errors.New("option text is empty or too long")
	ErrPollClosed      = errors.New("poll is closed")
	ErrAlreadyVoted    = errors.New("user has already voted on this poll")
	ErrNotCreator      = errors.New("only the poll creator may do this")
)

// Option is one answer a poll offers.
type Option struct {
	ID       uuid.UUID
	Position int
	Text     string
}

// Vote is one user's choice. Each user votes at most once per poll.
type Vote struct {
	UserID   uuid.UUID
	OptionID uuid.UUID
	VotedAt  time.Time
}

// Poll is a question put to a plan's active members.
type Poll struct {
	sharedDomain.BaseAggregateRoot
	planID    uuid.UUID
	creatorID uuid.UUID
	question  string
	options   []Option
	votes     []Vote
	active    bool
}

// NewPoll validates the question and options.
func NewPoll(planID, creatorID uuid.UUID, question string, options []string) (*Poll, error) {
	question = strings.TrimSpace(question)
	switch {
	case question == "":
		return nil, ErrEmptyQuestion
	case utf8.RuneCountInString(question) > MaxQuestionLength:
		return nil, ErrQuestionTooLong
	case len(options) < MinOptions:
		return nil, ErrTooFewOptions
	case len(options) > MaxOptions:
		return nil, ErrTooManyOptions
	}

	p := &Poll{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		planID:            planID,
		creatorID:         creatorID,
		question:          question,
		active:            true,
	}
	for i, text := range options {
		text = strings.TrimSpace(text)
		if text == "" || utf8.RuneCountInString(text) > MaxOptionLength {
			return nil, ErrInvalidOption
		}
		p.options = append(p.options, Option{ID: uuid.New(), Position: i, Text: text})
	}
	p.Record(newPollEvent(p, RoutingKeyPollCreated))
	return p, nil
}

// PollState is the persisted form of a poll.
type PollState struct {
	ID        uuid.UUID
	PlanID    uuid.UUID
	CreatorID uuid.UUID
	Question  string
	Active    bool
	Options   []Option
	Votes     []Vote
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RehydratePoll rebuilds a stored poll.
func RehydratePoll(s PollState) *Poll {
	return &Poll{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt)),
		planID:    s.PlanID,
		creatorID: s.CreatorID,
		question:  s.Question,
		options:   s.Options,
		votes:     s.Votes,
		active:    s.Active,
	}
}

func (p *Poll) PlanID() uuid.UUID    { return p.planID }
func (p *Poll) CreatorID() uuid.UUID { return p.creatorID }
func (p *Poll) Question() string     { return p.question }
func (p *Poll) Options() []Option    { return p.options }
func (p *Poll) Votes() []Vote        { return p.votes }
func (p *Poll) IsActive() bool       { return p.active }

// VoteOf returns the user's choice, if any.
func (p *Poll) VoteOf(userID uuid.UUID) (Vote, bool) {
	for _, v := range p.votes {
		if v.UserID == userID {
			return v, true
		}
	}
	return Vote{}, false
}

// Tally counts votes per option ID.
func (p *Poll) Tally() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(p.options))
	for _, o := range p.options {
		out[o.ID] = 0
	}
	for _, v := range p.votes {
		out[v.OptionID]++
	}
	return out
}

// Cast records the user's vote.
func (p *Poll) Cast(userID, optionID uuid.UUID) (Vote, error) {
	if !p.active {
		return Vote{}, ErrPollClosed
	}
	if _, voted := p.VoteOf(userID); voted {
		return Vote{}, ErrAlreadyVoted
	}
	found := false
	for _, o := range p.options {
		if o.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return Vote{}, ErrOptionNotFound
	}

	v := Vote{UserID: userID, OptionID: optionID, VotedAt: time.Now().UTC()}
	p.votes = append(p.votes, v)
	p.Record(newPollEvent(p, RoutingKeyPollVoted))
	return v, nil
}

// Close stops voting. Only the creator may close a poll.
func (p *Poll) Close(userID uuid.UUID) error {
	if userID != p.creatorID {
		return ErrNotCreator
	}
	if !p.active {
		return ErrPollClosed
	}
	p.active = false
	p.Record(newPollEvent(p, RoutingKeyPollClosed))
	return nil
}
