package queries

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const defaultDiscoveryLimit = 50

// DiscoverPlansQuery lists plans open for applications. A non-empty
// Keyword turns discovery into search.
type DiscoverPlansQuery struct {
	ViewerID uuid.UUID
	Keyword  string
	Limit    int
}

// DiscoverPlansHandler handles the DiscoverPlansQuery.
type DiscoverPlansHandler struct {
	readModel ReadModel
}

// NewDiscoverPlansHandler creates a new DiscoverPlansHandler.
func NewDiscoverPlansHandler(readModel ReadModel) *DiscoverPlansHandler {
	return &DiscoverPlansHandler{readModel: readModel}
}

// Handle executes the DiscoverPlansQuery.
func (h *DiscoverPlansHandler) Handle(ctx context.Context, query DiscoverPlansQuery) ([]PlanSummaryDTO, error) {
	limit := query.Limit
	if limit <= 0 || limit > 200 {
		limit = defaultDiscoveryLimit
	}
	return h.readModel.Discoverable(ctx, query.ViewerID, strings.TrimSpace(query.Keyword), limit)
}

// Scope selects one of the "my plans" lists.
type Scope string

const (
	ScopeCurrent Scope = "current"
	ScopeHistory Scope = "history"
)

// MyPlansQuery lists the user's own plans.
type MyPlansQuery struct {
	UserID uuid.UUID
	Scope  Scope
}

// MyPlansHandler handles the MyPlansQuery.
type MyPlansHandler struct {
	readModel ReadModel
}

// NewMyPlansHandler creates a new MyPlansHandler.
func NewMyPlansHandler(readModel ReadModel) *MyPlansHandler {
	return &MyPlansHandler{readModel: readModel}
}

// Handle executes the MyPlansQuery.
func (h *MyPlansHandler) Handle(ctx context.Context, query MyPlansQuery) ([]PlanSummaryDTO, error) {
	if query.Scope == ScopeHistory {
		return h.readModel.History(ctx, query.UserID)
	}
	return h.readModel.Current(ctx, query.UserID)
}
