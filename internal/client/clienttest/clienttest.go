// Package clienttest runs a real caravan server for client-side tests.
package clienttest

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	serverapi "github.com/felixgeelhaar/caravan/adapter/api"
	"github.com/felixgeelhaar/caravan/internal/app"
	"github.com/felixgeelhaar/caravan/internal/app/apptest"
	"github.com/felixgeelhaar/caravan/internal/client/api"
	"github.com/felixgeelhaar/caravan/internal/client/session"
	"github.com/felixgeelhaar/caravan/pkg/config"
	"github.com/felixgeelhaar/caravan/pkg/stomp"
)

// Server is an httptest server with the REST routes, the broker and the
// plan relay, backed by a local-mode container with a running outbox.
type Server struct {
	URL       string
	APIURL    string
	WSURL     string
	Container *app.Container
	Broker    *serverapi.Broker

	srv *httptest.Server
}

// NewServer starts a server and stops it on cleanup.
func NewServer(t *testing.T) *Server {
	t.Helper()
	c := apptest.NewContainer(t)

	cfg := serverapi.DefaultBrokerConfig()
	cfg.HeartBeat = stomp.HeartBeat{}
	broker := serverapi.NewContainerBroker(cfg, c)
	require.NoError(t, c.Subscribe(t.Context(), serverapi.NewPlanRelay(broker, c.Logger)))
	require.NoError(t, c.OutboxProcessor.Start(t.Context()))

	srv := httptest.NewServer(serverapi.NewRouter(serverapi.DefaultServerConfig(), c, broker, c.Logger))
	t.Cleanup(func() {
		c.OutboxProcessor.Stop()
		broker.Close()
		srv.Close()
	})
	return &Server{
		URL:       srv.URL,
		APIURL:    srv.URL + "/api",
		WSURL:     "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		Container: c,
		Broker:    broker,
		srv:       srv,
	}
}

// ClientConfig points a CLI configuration at the server with fast
// reconciliation cadences.
func (s *Server) ClientConfig(t *testing.T) *config.ClientConfig {
	t.Helper()
	fast := config.Cadence{Interval: 100 * time.Millisecond}
	return &config.ClientConfig{
		APIURL:         s.APIURL,
		WSURL:          s.WSURL,
		SessionFile:    t.TempDir() + "/session",
		HTTPTimeout:    5 * time.Second,
		ReadAttempts:   3,
		ReconnectDelay: 50 * time.Millisecond,
		HistoryLimit:   100,
		Discovery:      fast,
		MyPlans:        fast,
		Detail:         fast,
		Polls:          fast,
		Expenses:       fast,
	}
}

// Client returns a signed-out client with fast retries.
func (s *Server) Client(t *testing.T) *api.Client {
	t.Helper()
	cfg := api.DefaultConfig(s.APIURL)
	cfg.Backoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	c, err := api.New(cfg, session.New(session.NewMemoryStore(), nil))
	require.NoError(t, err)
	return c
}

// SignUp registers a user with the password "correct-horse" and returns a
// client signed in as them.
func (s *Server) SignUp(t *testing.T, email, firstName string) *api.Client {
	t.Helper()
	c := s.Client(t)
	_, err := c.Register(t.Context(), email, "correct-horse", firstName, "Test")
	require.NoError(t, err)
	return c
}

// CreatePlan creates a plan for four starting tomorrow.
func CreatePlan(t *testing.T, owner *api.Client, title string) uuid.UUID {
	t.Helper()
	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	id, err := owner.CreatePlan(t.Context(), api.NewPlan{
		Title:       title,
		Destination: "Lisbon",
		StartDate:   start,
		EndDate:     start.Add(72 * time.Hour),
		MaxMembers:  4,
	})
	require.NoError(t, err)
	return id
}

// RunningPlan creates a plan, accepts member onto it and starts it.
func RunningPlan(t *testing.T, owner, member *api.Client) uuid.UUID {
	t.Helper()
	ctx := t.Context()
	planID := CreatePlan(t, owner, "Lisbon long weekend")
	_, err := member.Apply(ctx, planID)
	require.NoError(t, err)
	_, err = owner.AcceptApplication(ctx, planID, UserID(t, member))
	require.NoError(t, err)
	require.NoError(t, owner.StartPlan(ctx, planID))
	return planID
}

// UserID returns the id of the user c is signed in as.
func UserID(t *testing.T, c *api.Client) uuid.UUID {
	t.Helper()
	u, ok := c.Session().Principal()
	require.True(t, ok, "client is not signed in")
	return u.ID
}

// Token returns c's current bearer token.
func Token(t *testing.T, c *api.Client) string {
	t.Helper()
	tok, err := c.Session().Token()
	require.NoError(t, err)
	return tok.AccessToken
}
