package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxContentLength bounds a message body in runes.
const MaxContentLength = 2000

var (
	ErrEmptyContent       = errors.New("message content cannot be empty")
	ErrContentTooLong     = errors.New("message content is too long")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageNotFound    = errors.New("message not found")
)

// MessageType classifies a chat line.
type MessageType string

const (
	MessageText         MessageType = "TEXT"
	MessageSystem       MessageType = "SYSTEM"
	MessageNotification MessageType = "NOTIFICATION"
)

// ParseMessageType accepts the wire form. Empty means TEXT.
func ParseMessageType(s string) (MessageType, error) {
	switch t := MessageType(strings.ToUpper(strings.TrimSpace(s))); t {
	case "":
		return MessageText, nil
	case MessageText, MessageSystem, MessageNotification:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMessageType, s)
	}
}

// Message is one immutable chat line on a plan.
type Message struct {
	ID       uuid.UUID
	PlanID   uuid.UUID
	SenderID uuid.UUID
	Content  string
	Type     MessageType
	SentAt   time.Time
}

// NewMessage validates the content and stamps the message. SentAt is never
// earlier than after, the newest timestamp already stored for the plan,
// so a plan's timeline stays non-decreasing even when clocks step back.
func NewMessage(planID, senderID uuid.UUID, content string, typ MessageType, now, after time.Time) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}
	if typ == "" {
		typ = MessageText
	}

	sentAt := now.UTC()
	if sentAt.Before(after) {
		sentAt = after.UTC()
	}
	return &Message{
		ID:       uuid.New(),
		PlanID:   planID,
		SenderID: senderID,
		Content:  content,
		Type:     typ,
		SentAt:   sentAt,
	}, nil
}
