package application

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubChecker struct {
	access PlanAccess
	err    error
}

func (s stubChecker) PlanAccess(context.Context, uuid.UUID, uuid.UUID) (PlanAccess, error) {
	return s.access, s.err
}

func (s stubChecker) ActiveMembers(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, s.err
}

func TestRequireCollaborator(t *testing.T) {
	lookupErr := errors.New("plan not found")
	tests := []struct {
		name    string
		checker stubChecker
		want    error
	}{
		{"active in progress", stubChecker{access: PlanAccess{Member: true, Active: true, InProgress: true}}, nil},
		{"stranger", stubChecker{}, ErrNotMember},
		{"pending", stubChecker{access: PlanAccess{Member: true, InProgress: true}}, ErrNotActiveMember},
		{"not started", stubChecker{access: PlanAccess{Member: true, Active: true}}, ErrPlanNotInProgress},
		{"lookup error", stubChecker{err: lookupErr}, lookupErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireCollaborator(context.Background(), tt.checker, uuid.New(), uuid.New())
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRequireMember(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, RequireMember(ctx, stubChecker{access: PlanAccess{Member: true}}, uuid.New(), uuid.New()))
	assert.ErrorIs(t, RequireMember(ctx, stubChecker{}, uuid.New(), uuid.New()), ErrNotMember)
}
