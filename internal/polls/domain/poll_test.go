package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoll(t *testing.T) {
	tests := []struct {
		name     string
		question string
		options  []string
		err      error
	}{
		{"valid", "Where do we eat?", []string{"Tasca", "Mercado"}, nil},
		{"empty question", " ", []string{"a", "b"}, ErrEmptyQuestion},
		{"long question", strings.Repeat("q", MaxQuestionLength+1), []string{"a", "b"}, ErrQuestionTooLong},
		{"one option", "Q?", []string{"a"}, ErrTooFewOptions},
		{"too many", "Q?", make([]string, MaxOptions+1), ErrTooManyOptions},
		{"blank option", "Q?", []string{"a", "  "}, ErrInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPoll(uuid.New(), uuid.New(), tt.question, tt.options)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, p.IsActive())
			require.Len(t, p.Options(), 2)
			assert.Equal(t, 1, p.Options()[1].Position)
			require.Len(t, p.DomainEvents(), 1)
			assert.Equal(t, RoutingKeyPollCreated, p.DomainEvents()[0].RoutingKey())
		})
	}
}

func TestPoll_CastAndClose(t *testing.T) {
	creator, voter := uuid.New(), uuid.New()
	p, err := NewPoll(uuid.New(), creator, "Beach or hills?", []string{"Beach", "Hills"})
	require.NoError(t, err)
	beach := p.Options()[0].ID

	_, err = p.Cast(voter, uuid.New())
	assert.ErrorIs(t, err, ErrOptionNotFound)

	_, err = p.Cast(voter, beach)
	require.NoError(t, err)
	_, err = p.Cast(voter, beach)
	assert.ErrorIs(t, err, ErrAlreadyVoted)
	assert.Equal(t, 1, p.Tally()[beach])
	assert.Equal(t, 0, p.Tally()[p.Options()[1].ID])

	assert.ErrorIs(t, p.Close(voter), ErrNotCreator)
	require.NoError(t, p.Close(creator))
	assert.ErrorIs(t, p.Close(creator), ErrPollClosed)

	_, err = p.Cast(creator, beach)
	assert.ErrorIs(t, err, ErrPollClosed)
}
