package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/caravan/internal/chat/application/queries"
	"github.com/felixgeelhaar/caravan/internal/chat/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLMessageRepository implements domain.MessageRepository and
// queries.ReadModel.
type SQLMessageRepository struct {
	conn database.Connection
}

// NewSQLMessageRepository creates a new chat repository.
func NewSQLMessageRepository(conn database.Connection) *SQLMessageRepository {
	return &SQLMessageRepository{conn: conn}
}

var (
	_ domain.MessageRepository = (*SQLMessageRepository)(nil)
	_ queries.ReadModel        = (*SQLMessageRepository)(nil)
)

func (r *SQLMessageRepository) Save(ctx context.Context, m *domain.Message) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx,
		`INSERT INTO chat_messages (id, plan_id, sender_id, content, message_type, sent_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.PlanID.String(), m.SenderID.String(), m.Content, string(m.Type), m.SentAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

func (r *SQLMessageRepository) LatestSentAt(ctx context.Context, planID uuid.UUID) (time.Time, error) {
	var latest time.Time
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT sent_at FROM chat_messages WHERE plan_id = ? ORDER BY sent_at DESC, id DESC LIMIT 1`,
		planID.String()).Scan(&latest)
	if database.IsNoRows(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read latest chat timestamp: %w", err)
	}
	return latest.UTC(), nil
}

const selectMessage = `SELECT c.id, c.plan_id, c.sender_id, c.content, c.message_type, c.sent_at,
        u.first_name, u.last_name, u.avatar_path
    FROM chat_messages c JOIN users u ON u.id = c.sender_id`

// Recent selects the newest rows and reverses them so callers get the
// tail of the conversation in reading order.
func (r *SQLMessageRepository) Recent(ctx context.Context, planID uuid.UUID, limit int) ([]queries.MessageDTO, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		selectMessage+` WHERE c.plan_id = ? ORDER BY c.sent_at DESC, c.id DESC LIMIT ?`,
		planID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	defer rows.Close()

	out := []queries.MessageDTO{}
	for rows.Next() {
		dto, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *dto)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *SQLMessageRepository) Get(ctx context.Context, id uuid.UUID) (*queries.MessageDTO, error) {
	dto, err := scanMessage(database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		selectMessage+` WHERE c.id = ?`, id.String()))
	if database.IsNoRows(err) {
		return nil, domain.ErrMessageNotFound
	}
	return dto, err
}

func scanMessage(row database.Row) (*queries.MessageDTO, error) {
	var (
		id, planID, senderID, content, typ string
		first, last, avatar                string
		sentAt                             time.Time
	)
	if err := row.Scan(&id, &planID, &senderID, &content, &typ, &sentAt, &first, &last, &avatar); err != nil {
		return nil, err
	}
	dto := &queries.MessageDTO{
		SenderName:   strings.TrimSpace(first + " " + last),
		SenderAvatar: avatar,
		Content:      content,
		Type:         domain.MessageType(typ),
		SentAt:       sentAt.UTC(),
	}
	var err error
	if dto.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if dto.PlanID, err = uuid.Parse(planID); err != nil {
		return nil, err
	}
	if dto.SenderID, err = uuid.Parse(senderID); err != nil {
		return nil, err
	}
	return dto, nil
}
