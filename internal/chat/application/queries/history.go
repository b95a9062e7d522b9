package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/caravan/internal/chat/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500
)

// MessageDTO is a chat line with the sender's display data.
type MessageDTO struct {
	ID           uuid.UUID          `json:"id"`
	PlanID       uuid.UUID          `json:"planId"`
	SenderID     uuid.UUID          `json:"senderId"`
	SenderName   string             `json:"senderDisplayName"`
	SenderAvatar string             `json:"senderAvatarRef,omitempty"`
	Content      string             `json:"content"`
	Type         domain.MessageType `json:"messageType"`
	SentAt       time.Time          `json:"sentAt"`
}

// ReadModel serves chat reads.
type ReadModel interface {
	// Recent returns the newest limit messages, oldest first.
	Recent(ctx context.Context, planID uuid.UUID, limit int) ([]MessageDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*MessageDTO, error)
}

// HistoryQuery asks for the tail of a plan's chat.
type HistoryQuery struct {
	PlanID   uuid.UUID
	ViewerID uuid.UUID
	Limit    int
}

// HistoryHandler returns recent messages to anyone holding a membership.
type HistoryHandler struct {
	readModel    ReadModel
	access       sharedApplication.PlanAccessChecker
	defaultLimit int
}

// NewHistoryHandler creates a new HistoryHandler. A non-positive
// defaultLimit falls back to DefaultHistoryLimit.
func NewHistoryHandler(readModel ReadModel, access sharedApplication.PlanAccessChecker, defaultLimit int) *HistoryHandler {
	if defaultLimit <= 0 {
		defaultLimit = DefaultHistoryLimit
	}
	return &HistoryHandler{readModel: readModel, access: access, defaultLimit: defaultLimit}
}

// Handle executes the HistoryQuery.
func (h *HistoryHandler) Handle(ctx context.Context, query HistoryQuery) ([]MessageDTO, error) {
	if err := sharedApplication.RequireMember(ctx, h.access, query.PlanID, query.ViewerID); err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit <= 0 {
		limit = h.defaultLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return h.readModel.Recent(ctx, query.PlanID, limit)
}

// GetMessageHandler loads one stored message, used to broadcast what was
// just sent.
type GetMessageHandler struct {
	readModel ReadModel
}

// NewGetMessageHandler creates a new GetMessageHandler.
func NewGetMessageHandler(readModel ReadModel) *GetMessageHandler {
	return &GetMessageHandler{readModel: readModel}
}

func (h *GetMessageHandler) Handle(ctx context.Context, id uuid.UUID) (*MessageDTO, error) {
	return h.readModel.Get(ctx, id)
}
