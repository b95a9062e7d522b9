package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		content string
		err     error
	}{
		{"plain", "hello", nil},
		{"trimmed empty", "   ", ErrEmptyContent},
		{"at limit", strings.Repeat("é", MaxContentLength), nil},
		{"over limit", strings.Repeat("a", MaxContentLength+1), ErrContentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMessage(uuid.New(), uuid.New(), tt.content, "", now, time.Time{})
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, MessageText, m.Type)
			assert.Equal(t, now, m.SentAt)
		})
	}
}

func TestNewMessage_ClampsToLatest(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	latest := now.Add(time.Second)

	m, err := NewMessage(uuid.New(), uuid.New(), "hi", MessageText, now, latest)

	require.NoError(t, err)
	assert.Equal(t, latest, m.SentAt)
}

func TestParseMessageType(t *testing.T) {
	typ, err := ParseMessageType("text")
	require.NoError(t, err)
	assert.Equal(t, MessageText, typ)

	typ, err = ParseMessageType("")
	require.NoError(t, err)
	assert.Equal(t, MessageText, typ)

	_, err = ParseMessageType("video")
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}
