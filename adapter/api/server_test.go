package api_test

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/felixgeelhaar/caravan/adapter/api"
	"github.com/felixgeelhaar/caravan/internal/files"
	notificationDomain "github.com/felixgeelhaar/caravan/internal/notifications/domain"
	planQueries "github.com/felixgeelhaar/caravan/internal/planning/application/queries"
	planningDomain "github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	a := newTestAPI(t)

	a.expect(http.StatusOK, http.MethodGet, "/healthz", "", nil, nil)

	var health observability.OverallHealth
	a.expect(http.StatusOK, http.MethodGet, "/readyz", "", nil, &health)
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t)
	ana := a.register("ana@example.com", "Ana")

	var me api.UserDTO
	a.expect(http.StatusOK, http.MethodGet, "/api/auth/me", ana.token, nil, &me)
	assert.Equal(t, ana.id, me.ID)
	assert.Equal(t, "ana@example.com", me.Email)

	var session api.SessionResponse
	a.expect(http.StatusOK, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "correct-horse",
	}, &session)
	assert.NotEmpty(t, session.Token)

	a.expectError(http.StatusUnauthorized, "invalid_credentials", http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "ana@example.com", "password": "wrong-password"})
	a.expectError(http.StatusConflict, "email_taken", http.MethodPost, "/api/auth/register", "",
		map[string]string{"email": "ana@example.com", "password": "correct-horse", "firstName": "Ana"})

	a.expect(http.StatusNoContent, http.MethodPost, "/api/auth/logout", ana.token, nil, nil)
	a.expectError(http.StatusUnauthorized, api.CodeUnauthorized, http.MethodGet, "/api/auth/me", ana.token, nil)
}

func TestAuthMiddleware(t *testing.T) {
	a := newTestAPI(t)

	a.expectError(http.StatusUnauthorized, api.CodeUnauthorized, http.MethodGet, "/api/travel-plans/current", "", nil)
	a.expectError(http.StatusUnauthorized, api.CodeUnauthorized, http.MethodGet, "/api/travel-plans/current", "garbage", nil)
}

func TestValidationErrors(t *testing.T) {
	a := newTestAPI(t)
	ana := a.register("ana@example.com", "Ana")

	res := a.expectError(http.StatusUnprocessableEntity, api.CodeValidation, http.MethodPost, "/api/travel-plans", ana.token,
		map[string]any{"destination": "Porto", "maxMembers": 1, "visibility": "SECRET"})
	assert.Contains(t, res.Fields, "title")
	assert.Contains(t, res.Fields, "maxMembers")
	assert.Contains(t, res.Fields, "visibility")
	assert.Contains(t, res.Fields, "startDate")

	a.expectError(http.StatusUnprocessableEntity, api.CodeValidation, http.MethodPost, "/api/auth/register", "",
		map[string]string{"email": "not-an-email", "password": "short"})

	a.expectError(http.StatusBadRequest, api.CodeBadRequest, http.MethodGet, "/api/travel-plans/not-a-uuid", ana.token, nil)
}

func TestMembershipLifecycle(t *testing.T) {
	a := newTestAPI(t)
	owner := a.register("owner@example.com", "Olga")
	bob := a.register("bob@example.com", "Bob")
	cara := a.register("cara@example.com", "Cara")

	planID := a.createPlan(owner, "Alps hike")
	base := "/api/travel-plans/" + planID.String()

	var discovered []planQueries.PlanSummaryDTO
	a.expect(http.StatusOK, http.MethodGet, "/api/travel-plans/discovery", bob.token, nil, &discovered)
	require.Len(t, discovered, 1)
	assert.Equal(t, planID, discovered[0].ID)

	var found []planQueries.PlanSummaryDTO
	a.expect(http.StatusOK, http.MethodGet, "/api/travel-plans/search?q=alps", bob.token, nil, &found)
	assert.Len(t, found, 1)

	var m api.MembershipResponse
	a.expect(http.StatusOK, http.MethodPost, base+"/apply", bob.token, nil, &m)
	assert.Equal(t, string(planningDomain.StatusApplied), m.Status)
	a.expectError(http.StatusConflict, api.CodeAlreadyMember, http.MethodPost, base+"/apply", bob.token, nil)

	a.expectError(http.StatusForbidden, "not_owner", http.MethodPost,
		base+"/members/"+bob.id.String()+"/accept", cara.token, nil)
	a.expect(http.StatusOK, http.MethodPost, base+"/applications/"+bob.id.String()+"/accept", owner.token, nil, &m)
	assert.Equal(t, string(planningDomain.StatusAppliedAccepted), m.Status)

	a.expect(http.StatusOK, http.MethodPost, base+"/invite", owner.token, map[string]string{"email": "cara@example.com"}, &m)
	assert.Equal(t, string(planningDomain.StatusInvited), m.Status)
	a.expectError(http.StatusNotFound, "user_not_found", http.MethodPost, base+"/invite", owner.token,
		map[string]string{"email": "nobody@example.com"})
	a.expect(http.StatusOK, http.MethodPost, base+"/refuse-invitation", cara.token, nil, &m)
	assert.Equal(t, string(planningDomain.StatusInvitedRefused), m.Status)

	var detail planQueries.PlanDetailDTO
	a.expect(http.StatusOK, http.MethodGet, base, bob.token, nil, &detail)
	assert.Equal(t, 2, detail.ActiveCount)
	assert.Equal(t, planningDomain.StatusAppliedAccepted, detail.ViewerStatus)
	assert.False(t, detail.CanCollaborate, "plan has not started")

	var check map[string]bool
	a.expect(http.StatusOK, http.MethodGet, "/api/travel-plans/check-current", bob.token, nil, &check)
	assert.True(t, check["hasCurrentPlan"])

	a.expectError(http.StatusUnprocessableEntity, api.CodeValidation, http.MethodPost, base+"/close", owner.token,
		map[string]string{"reason": ""})
	a.expect(http.StatusNoContent, http.MethodPost, base+"/close", owner.token, map[string]string{"reason": "weather"}, nil)

	var history []planQueries.PlanSummaryDTO
	a.expect(http.StatusOK, http.MethodGet, "/api/travel-plans/history", bob.token, nil, &history)
	require.Len(t, history, 1)
	assert.Equal(t, planningDomain.PlanCancelled, history[0].Status)

	var current []planQueries.PlanSummaryDTO
	a.expect(http.StatusOK, http.MethodGet, "/api/travel-plans/current", bob.token, nil, &current)
	assert.Empty(t, current)
}

func TestCollaborationGate(t *testing.T) {
	a := newTestAPI(t)
	owner := a.register("owner@example.com", "Olga")
	bob := a.register("bob@example.com", "Bob")
	eve := a.register("eve@example.com", "Eve")

	planID := a.createPlan(owner, "Lake weekend")
	polls := "/api/polls/" + planID.String()
	poll := map[string]any{"question": "Where to eat?", "options": []string{"Tasca", "Market"}}

	a.expectError(http.StatusConflict, "plan_not_in_progress", http.MethodPost, polls, owner.token, poll)

	base := "/api/travel-plans/" + planID.String()
	a.expect(http.StatusOK, http.MethodPost, base+"/apply", bob.token, nil, nil)
	a.expect(http.StatusOK, http.MethodPost, base+"/members/"+bob.id.String()+"/accept", owner.token, nil, nil)
	a.expect(http.StatusNoContent, http.MethodPost, base+"/start", owner.token, nil, nil)

	a.expectError(http.StatusForbidden, "not_member", http.MethodPost, polls, eve.token, poll)

	var created api.CreatedResponse
	a.expect(http.StatusCreated, http.MethodPost, polls, bob.token, poll, &created)

	var listed []struct {
		ID      string `json:"id"`
		Options []struct {
			ID string `json:"id"`
		} `json:"options"`
	}
	a.expect(http.StatusOK, http.MethodGet, polls, owner.token, nil, &listed)
	require.Len(t, listed, 1)
	require.Len(t, listed[0].Options, 2)

	pollPath := "/api/polls/" + created.ID.String()
	vote := map[string]string{"optionId": listed[0].Options[0].ID}
	a.expect(http.StatusNoContent, http.MethodPost, pollPath+"/vote", owner.token, vote, nil)
	a.expectError(http.StatusForbidden, "not_creator", http.MethodPost, pollPath+"/close", owner.token, nil)
	a.expect(http.StatusNoContent, http.MethodPost, pollPath+"/close", bob.token, nil, nil)

	expenses := "/api/expenses/" + planID.String()
	a.expect(http.StatusCreated, http.MethodPost, expenses, owner.token, map[string]any{
		"description": "Boat rental",
		"totalMinor":  9000,
		"currency":    "EUR",
	}, &created)

	var summary []struct {
		Currency string `json:"currency"`
		Paid     int64  `json:"paid"`
		Share    int64  `json:"share"`
	}
	a.expect(http.StatusOK, http.MethodGet, expenses+"/summary", owner.token, nil, &summary)
	require.Len(t, summary, 1)
	assert.Equal(t, int64(9000), summary[0].Paid)
	assert.Equal(t, int64(4500), summary[0].Share)

	a.expect(http.StatusOK, http.MethodGet, "/api/chat/"+planID.String()+"/messages", bob.token, nil, nil)
	a.expectError(http.StatusForbidden, "not_member", http.MethodGet, "/api/chat/"+planID.String()+"/messages", eve.token, nil)
}

func TestNotificationsEndpoint(t *testing.T) {
	a := newTestAPI(t)
	owner := a.register("owner@example.com", "Olga")
	bob := a.register("bob@example.com", "Bob")

	planID := a.createPlan(owner, "City break")
	a.expect(http.StatusOK, http.MethodPost, "/api/travel-plans/"+planID.String()+"/apply", bob.token, nil, nil)
	require.NoError(t, a.c.OutboxProcessor.ProcessOnce(t.Context()))

	var items []notificationDomain.Notification
	a.expect(http.StatusOK, http.MethodGet, "/api/notifications?unread=true", owner.token, nil, &items)
	var received *notificationDomain.Notification
	for i := range items {
		if items[i].Kind == notificationDomain.KindApplicationReceived {
			received = &items[i]
		}
	}
	require.NotNil(t, received)
	readID := received.ID

	a.expect(http.StatusNoContent, http.MethodPost, "/api/notifications/"+readID.String()+"/read", owner.token, nil, nil)
	a.expectError(http.StatusNotFound, api.CodeNotFound, http.MethodPost,
		"/api/notifications/"+readID.String()+"/read", bob.token, nil)

	var unread []notificationDomain.Notification
	a.expect(http.StatusOK, http.MethodGet, "/api/notifications?unread=true", owner.token, nil, &unread)
	require.NotEmpty(t, unread, "the welcome note is still unread")
	for _, n := range unread {
		assert.NotEqual(t, readID, n.ID)
	}

	var all []notificationDomain.Notification
	a.expect(http.StatusOK, http.MethodGet, "/api/notifications", owner.token, nil, &all)
	var found bool
	for _, n := range all {
		if n.ID == readID {
			found = true
			assert.NotNil(t, n.ReadAt)
		}
	}
	assert.True(t, found)
}

func TestFileUploadAndDownload(t *testing.T) {
	a := newTestAPI(t)
	ana := a.register("ana@example.com", "Ana")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "Beach.JPG")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/api/files", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ana.token)
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var info files.Info
	require.NoError(t, jsonDecode(resp.Body, &info))
	assert.Regexp(t, `^\d{4}/\d{2}/[0-9a-f-]{36}\.jpg$`, info.Path)
	assert.Equal(t, int64(10), info.Size)

	got, err := a.srv.Client().Get(a.srv.URL + "/api/files/" + info.Path)
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)
	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(body))

	a.expectError(http.StatusNotFound, api.CodeNotFound, http.MethodGet, "/api/files/2020/01/missing.jpg", "", nil)
}

func TestHTTPMetrics(t *testing.T) {
	a := newTestAPI(t)
	a.expect(http.StatusOK, http.MethodGet, "/healthz", "", nil, nil)

	assert.Equal(t, int64(1), a.c.Metrics.GetCounter(observability.MetricHTTPRequests,
		observability.T("method", http.MethodGet),
		observability.T("route", "/healthz"),
		observability.T("status", "200"),
	))
}
