package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/caravan/internal/client/api"
	"github.com/felixgeelhaar/caravan/internal/client/push"
	"github.com/felixgeelhaar/caravan/pkg/stomp"
)

// Runner is a poller of any resource type.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
	Refresh()
}

type entry struct {
	planID uuid.UUID
	runner Runner
}

// Manager runs pollers side by side and turns plan push hints into early
// refreshes.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries []entry
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Add registers r. planID scopes it to one plan; uuid.Nil marks a list
// that any plan change may affect. Add before Run.
func (m *Manager) Add(planID uuid.UUID, r Runner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{planID: planID, runner: r})
}

// Run runs every registered poller until ctx is cancelled. No poller
// waits on another.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	entries := append([]entry(nil), m.entries...)
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error { return e.runner.Run(gctx) })
	}
	return g.Wait()
}

// Hint refreshes the pollers a change to h.PlanID may affect and returns
// how many it woke.
func (m *Manager) Hint(h api.PlanHint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.planID == uuid.Nil || e.planID == h.PlanID {
			e.runner.Refresh()
			n++
		}
	}
	m.logger.Debug("plan hint", "plan_id", h.PlanID, "event", h.Event, "refreshed", n)
	return n
}

// Follow subscribes conn to the hint topic of planID. The returned function
// unsubscribes.
func (m *Manager) Follow(ctx context.Context, conn *push.Conn, planID uuid.UUID) (func() error, error) {
	return conn.Subscribe(ctx, "/topic/plans/"+planID.String(), func(f *stomp.Frame) {
		var h api.PlanHint
		if err := json.Unmarshal(f.Body, &h); err != nil {
			m.logger.Warn("dropping malformed plan hint", "error", err)
			return
		}
		m.Hint(h)
	})
}
