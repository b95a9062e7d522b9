package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"no placeholders", "SELECT 1", "SELECT 1"},
		{"sequential", "UPDATE memberships SET status = ? WHERE plan_id = ? AND user_id = ?",
			"UPDATE memberships SET status = $1 WHERE plan_id = $2 AND user_id = $3"},
		{"literal kept", "SELECT id FROM travel_plans WHERE title = '?' AND id = ?",
			"SELECT id FROM travel_plans WHERE title = '?' AND id = $1"},
		{"escaped quote", "SELECT 'it''s ?', ?", "SELECT 'it''s ?', $1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rebind(tt.query))
		})
	}
}
