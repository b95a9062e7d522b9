package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/caravan/internal/polls/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLPollRepository implements domain.PollRepository.
type SQLPollRepository struct {
	conn database.Connection
}

// NewSQLPollRepository creates a new poll repository.
func NewSQLPollRepository(conn database.Connection) *SQLPollRepository {
	return &SQLPollRepository{conn: conn}
}

var _ domain.PollRepository = (*SQLPollRepository)(nil)

const upsertPoll = `INSERT INTO polls (id, plan_id, creator_id, question, active, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (id) DO UPDATE SET
        active = excluded.active,
        updated_at = excluded.updated_at`

func (r *SQLPollRepository) Save(ctx context.Context, p *domain.Poll) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, upsertPoll,
		p.ID().String(), p.PlanID().String(), p.CreatorID().String(), p.Question(), p.IsActive(),
		p.CreatedAt().UTC(), p.UpdatedAt().UTC())
	if err != nil {
		return fmt.Errorf("failed to save poll: %w", err)
	}
	for _, o := range p.Options() {
		_, err := exec.Exec(ctx,
			`INSERT INTO poll_options (id, poll_id, position, text) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
			o.ID.String(), p.ID().String(), o.Position, o.Text)
		if err != nil {
			return fmt.Errorf("failed to save poll option: %w", err)
		}
	}
	return nil
}

func (r *SQLPollRepository) AddVote(ctx context.Context, pollID uuid.UUID, v domain.Vote) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`INSERT INTO poll_votes (poll_id, user_id, option_id, voted_at) VALUES (?, ?, ?, ?)`,
		pollID.String(), v.UserID.String(), v.OptionID.String(), v.VotedAt.UTC())
	if database.IsUniqueViolation(err) {
		return domain.ErrAlreadyVoted
	}
	if err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}

const selectPoll = `SELECT id, plan_id, creator_id, question, active, created_at, updated_at FROM polls`

func (r *SQLPollRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	state, err := scanPoll(exec.QueryRow(ctx, selectPoll+` WHERE id = ?`, id.String()))
	if database.IsNoRows(err) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, exec, state); err != nil {
		return nil, err
	}
	return domain.RehydratePoll(*state), nil
}

func (r *SQLPollRepository) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Poll, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, selectPoll+` WHERE plan_id = ? ORDER BY created_at DESC, id`, planID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	var states []*domain.PollState
	for rows.Next() {
		s, err := scanPoll(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]*domain.Poll, 0, len(states))
	for _, s := range states {
		if err := r.loadChildren(ctx, exec, s); err != nil {
			return nil, err
		}
		out = append(out, domain.RehydratePoll(*s))
	}
	return out, nil
}

// loadChildren runs after the parent cursor is closed; SQLite serves one
// statement at a time on its single connection.
func (r *SQLPollRepository) loadChildren(ctx context.Context, exec database.Executor, s *domain.PollState) error {
	rows, err := exec.Query(ctx, `SELECT id, position, text FROM poll_options WHERE poll_id = ? ORDER BY position`, s.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load poll options: %w", err)
	}
	for rows.Next() {
		var (
			id string
			o  domain.Option
		)
		if err := rows.Scan(&id, &o.Position, &o.Text); err != nil {
			rows.Close()
			return err
		}
		if o.ID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return err
		}
		s.Options = append(s.Options, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = exec.Query(ctx, `SELECT user_id, option_id, voted_at FROM poll_votes WHERE poll_id = ? ORDER BY voted_at`, s.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load poll votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			userID, optionID string
			v                domain.Vote
		)
		if err := rows.Scan(&userID, &optionID, &v.VotedAt); err != nil {
			return err
		}
		if v.UserID, err = uuid.Parse(userID); err != nil {
			return err
		}
		if v.OptionID, err = uuid.Parse(optionID); err != nil {
			return err
		}
		v.VotedAt = v.VotedAt.UTC()
		s.Votes = append(s.Votes, v)
	}
	return rows.Err()
}

func scanPoll(row database.Row) (*domain.PollState, error) {
	var (
		id, planID, creatorID, question string
		active                          bool
		created, updated                time.Time
	)
	if err := row.Scan(&id, &planID, &creatorID, &question, &active, &created, &updated); err != nil {
		return nil, err
	}
	s := &domain.PollState{Question: question, Active: active, CreatedAt: created, UpdatedAt: updated}
	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if s.PlanID, err = uuid.Parse(planID); err != nil {
		return nil, err
	}
	if s.CreatorID, err = uuid.Parse(creatorID); err != nil {
		return nil, err
	}
	return s, nil
}
