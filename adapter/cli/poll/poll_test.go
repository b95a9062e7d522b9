package poll

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/caravan/adapter/cli"
	"github.com/felixgeelhaar/caravan/internal/client/api"
	"github.com/felixgeelhaar/caravan/internal/client/clienttest"
)

func as(t *testing.T, srv *clienttest.Server, c *api.Client, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	cli.SetApp(&cli.App{
		Config:  srv.ClientConfig(t),
		Client:  c,
		Session: c.Session(),
		Logger:  slog.Default(),
		In:      strings.NewReader(""),
	})
	t.Cleanup(func() { cli.SetApp(nil) })

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetContext(t.Context())
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}

func TestPollCommands(t *testing.T) {
	srv := clienttest.NewServer(t)
	ana := srv.SignUp(t, "ana@example.com", "Ana")
	bob := srv.SignUp(t, "bob@example.com", "Bob")
	planID := clienttest.RunningPlan(t, ana, bob)
	id := planID.String()

	out, err := as(t, srv, ana, listCmd, id)
	require.NoError(t, err)
	assert.Equal(t, "No polls yet.\n", out)

	out, err = as(t, srv, ana, createCmd, id, "Where do we eat tonight?", "Time Out Market", "Cervejaria Ramiro")
	require.NoError(t, err)
	assert.Contains(t, out, "Poll created: ")

	polls, err := bob.Polls(t.Context(), planID)
	require.NoError(t, err)
	require.Len(t, polls, 1)
	poll := polls[0]
	require.Len(t, poll.Options, 2)

	out, err = as(t, srv, bob, voteCmd, poll.ID.String(), poll.Options[1].ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Vote recorded.\n", out)

	out, err = as(t, srv, bob, listCmd, id)
	require.NoError(t, err)
	assert.Contains(t, out, "Where do we eat tonight? (open, 1 votes)")
	assert.Contains(t, out, "> Cervejaria Ramiro")

	_, err = as(t, srv, bob, closeCmd, poll.ID.String())
	require.ErrorIs(t, err, api.ErrForbidden)

	out, err = as(t, srv, ana, closeCmd, poll.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Poll closed.\n", out)

	_, err = as(t, srv, bob, voteCmd, poll.ID.String(), poll.Options[0].ID.String())
	require.ErrorIs(t, err, api.ErrConflict)
}

func TestPollCommands_PlanNotStarted(t *testing.T) {
	srv := clienttest.NewServer(t)
	ana := srv.SignUp(t, "ana@example.com", "Ana")
	planID := clienttest.CreatePlan(t, ana, "Porto food tour")

	out, err := as(t, srv, ana, listCmd, planID.String())
	require.NoError(t, err)
	assert.Equal(t, "No polls yet.\n", out)

	_, err = as(t, srv, ana, createCmd, planID.String(), "Tram or walk?", "Tram", "Walk")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "plan_not_in_progress", apiErr.Code)
}
