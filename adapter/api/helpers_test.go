package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/felixgeelhaar/caravan/adapter/api"
	"github.com/felixgeelhaar/caravan/internal/app"
	"github.com/felixgeelhaar/caravan/internal/app/apptest"
	"github.com/felixgeelhaar/caravan/pkg/stomp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	t      *testing.T
	srv    *httptest.Server
	c      *app.Container
	broker *api.Broker
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	c := apptest.NewContainer(t)

	cfg := api.DefaultBrokerConfig()
	cfg.HeartBeat = stomp.HeartBeat{}
	broker := api.NewContainerBroker(cfg, c)
	require.NoError(t, c.Subscribe(t.Context(), api.NewPlanRelay(broker, c.Logger)))

	srv := httptest.NewServer(api.NewRouter(api.DefaultServerConfig(), c, broker, c.Logger))
	t.Cleanup(func() {
		broker.Close()
		srv.Close()
	})
	return &testAPI{t: t, srv: srv, c: c, broker: broker}
}

// do sends body as JSON and returns the response with its body read.
func (a *testAPI) do(method, path, token string, body any) (*http.Response, []byte) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, r)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp, data
}

// expect asserts the status and decodes the body into out when non-nil.
func (a *testAPI) expect(status int, method, path, token string, body, out any) {
	a.t.Helper()
	resp, data := a.do(method, path, token, body)
	require.Equalf(a.t, status, resp.StatusCode, "%s %s: %s", method, path, data)
	if out != nil {
		require.NoError(a.t, json.Unmarshal(data, out))
	}
}

func (a *testAPI) expectError(status int, code, method, path, token string, body any) api.ErrorResponse {
	a.t.Helper()
	var res api.ErrorResponse
	a.expect(status, method, path, token, body, &res)
	require.Equal(a.t, code, res.Error)
	return res
}

type user struct {
	id    uuid.UUID
	token string
}

func (a *testAPI) register(email, firstName string) user {
	a.t.Helper()
	var res api.SessionResponse
	a.expect(http.StatusCreated, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":     email,
		"password":  "correct-horse",
		"firstName": firstName,
		"lastName":  "Test",
	}, &res)
	return user{id: res.User.ID, token: res.Token}
}

func (a *testAPI) createPlan(owner user, title string) uuid.UUID {
	a.t.Helper()
	start := time.Now().AddDate(0, 1, 0).UTC().Truncate(24 * time.Hour)
	var res api.CreatedResponse
	a.expect(http.StatusCreated, http.MethodPost, "/api/travel-plans", owner.token, map[string]any{
		"title":       title,
		"destination": "Lisbon",
		"startDate":   start,
		"endDate":     start.AddDate(0, 0, 7),
		"maxMembers":  4,
	}, &res)
	return res.ID
}

// runningPlan returns an IN_PROGRESS plan owned by owner with member
// accepted.
func (a *testAPI) runningPlan(owner, member user) uuid.UUID {
	a.t.Helper()
	planID := a.createPlan(owner, "Coast trip")
	base := "/api/travel-plans/" + planID.String()
	a.expect(http.StatusOK, http.MethodPost, base+"/apply", member.token, nil, nil)
	a.expect(http.StatusOK, http.MethodPost, base+"/members/"+member.id.String()+"/accept", owner.token, nil, nil)
	a.expect(http.StatusNoContent, http.MethodPost, base+"/start", owner.token, nil, nil)
	return planID
}

func jsonDecode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
