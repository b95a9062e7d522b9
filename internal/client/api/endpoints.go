package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/caravan/internal/client/session"
)

// Register creates an account and signs in as it.
func (c *Client) Register(ctx context.Context, email, password, firstName, lastName string) (Session, error) {
	in := map[string]string{
		"email":     email,
		"password":  password,
		"firstName": firstName,
		"lastName":  lastName,
	}
	return c.establish(ctx, "/auth/register", in)
}

// Login signs in and stores the issued token in the session.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	in := map[string]string{"email": email, "password": password}
	return c.establish(ctx, "/auth/login", in)
}

func (c *Client) establish(ctx context.Context, path string, in any) (Session, error) {
	body, err := jsonBody(in)
	if err != nil {
		return Session{}, err
	}
	var out Session
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		body:        body,
		contentType: "application/json",
		public:      true,
		out:         &out,
	})
	if err != nil {
		return Session{}, err
	}
	user := session.User{ID: out.User.ID, Email: out.User.Email, DisplayName: out.User.DisplayName}
	if err := c.session.SetSession(out.Token, out.ExpiresAt, user); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return out, nil
}

// Me returns the signed-in account.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	return out, c.get(ctx, "/auth/me", nil, &out)
}

// Logout revokes the token on the server and clears the local session
// whatever the server answers.
func (c *Client) Logout(ctx context.Context) error {
	err := c.post(ctx, "/auth/logout", nil, nil)
	c.session.Clear()
	return err
}

// CreatePlan creates a plan owned by the caller.
func (c *Client) CreatePlan(ctx context.Context, plan NewPlan) (uuid.UUID, error) {
	var out created
	if err := c.post(ctx, "/travel-plans", plan, &out); err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

// Discover lists joinable plans. A limit of zero uses the server default.
func (c *Client) Discover(ctx context.Context, limit int) ([]PlanSummary, error) {
	var out []PlanSummary
	return out, c.get(ctx, "/travel-plans/discovery", limitQuery(nil, limit), &out)
}

// Search lists joinable plans matching keyword.
func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]PlanSummary, error) {
	var out []PlanSummary
	q := limitQuery(url.Values{"q": {keyword}}, limit)
	return out, c.get(ctx, "/travel-plans/search", q, &out)
}

// CurrentPlans lists the caller's open and running plans.
func (c *Client) CurrentPlans(ctx context.Context) ([]PlanSummary, error) {
	var out []PlanSummary
	return out, c.get(ctx, "/travel-plans/current", nil, &out)
}

// PlanHistory lists the caller's finished plans.
func (c *Client) PlanHistory(ctx context.Context) ([]PlanSummary, error) {
	var out []PlanSummary
	return out, c.get(ctx, "/travel-plans/history", nil, &out)
}

// HasCurrentPlan reports whether the caller has a plan in progress.
func (c *Client) HasCurrentPlan(ctx context.Context) (bool, error) {
	var out struct {
		HasCurrentPlan bool `json:"hasCurrentPlan"`
	}
	err := c.get(ctx, "/travel-plans/check-current", nil, &out)
	return out.HasCurrentPlan, err
}

// Plan returns a plan with its members.
func (c *Client) Plan(ctx context.Context, planID uuid.UUID) (PlanDetail, error) {
	var out PlanDetail
	return out, c.get(ctx, planPath(planID), nil, &out)
}

func (c *Client) Apply(ctx context.Context, planID uuid.UUID) (Membership, error) {
	return c.transition(ctx, planPath(planID, "apply"), nil)
}

func (c *Client) CancelApplication(ctx context.Context, planID uuid.UUID) (Membership, error) {
	return c.transition(ctx, planPath(planID, "cancel-application"), nil)
}

// Invite invites the account registered under email.
func (c *Client) Invite(ctx context.Context, planID uuid.UUID, email string) (Membership, error) {
	return c.transition(ctx, planPath(planID, "invite"), map[string]string{"email": email})
}

func (c *Client) AcceptInvitation(ctx context.Context, planID uuid.UUID) (Membership, error) {
	return c.transition(ctx, planPath(planID, "accept-invitation"), nil)
}

func (c *Client) RefuseInvitation(ctx context.Context, planID uuid.UUID) (Membership, error) {
	return c.transition(ctx, planPath(planID, "refuse-invitation"), nil)
}

func (c *Client) AcceptApplication(ctx context.Context, planID, applicantID uuid.UUID) (Membership, error) {
	return c.transition(ctx, planPath(planID, "applications", applicantID.String(), "accept"), nil)
}

func (c *Client) RefuseApplication(ctx context.Context, planID, applicantID uuid.UUID) (Membership, error) {
	return c.transition(ctx, planPath(planID, "applications", applicantID.String(), "refuse"), nil)
}

func (c *Client) transition(ctx context.Context, path string, in any) (Membership, error) {
	var out Membership
	return out, c.post(ctx, path, in, &out)
}

// ClosePlan cancels a plan before it starts.
func (c *Client) ClosePlan(ctx context.Context, planID uuid.UUID, reason string) error {
	return c.post(ctx, planPath(planID, "close"), map[string]string{"reason": reason}, nil)
}

func (c *Client) StartPlan(ctx context.Context, planID uuid.UUID) error {
	return c.post(ctx, planPath(planID, "start"), nil, nil)
}

func (c *Client) CompletePlan(ctx context.Context, planID uuid.UUID) error {
	return c.post(ctx, planPath(planID, "complete"), nil, nil)
}

// ChatHistory returns the latest messages of a plan, oldest first.
func (c *Client) ChatHistory(ctx context.Context, planID uuid.UUID, limit int) ([]ChatMessage, error) {
	var out []ChatMessage
	path := "/chat/" + planID.String() + "/messages"
	return out, c.get(ctx, path, limitQuery(nil, limit), &out)
}

func (c *Client) Polls(ctx context.Context, planID uuid.UUID) ([]Poll, error) {
	var out []Poll
	return out, c.get(ctx, "/polls/"+planID.String(), nil, &out)
}

func (c *Client) CreatePoll(ctx context.Context, planID uuid.UUID, question string, options []string) (uuid.UUID, error) {
	in := struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}{question, options}
	var out created
	if err := c.post(ctx, "/polls/"+planID.String(), in, &out); err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

// Vote records or moves the caller's vote.
func (c *Client) Vote(ctx context.Context, pollID, optionID uuid.UUID) error {
	in := map[string]string{"optionId": optionID.String()}
	return c.post(ctx, "/polls/"+pollID.String()+"/vote", in, nil)
}

func (c *Client) ClosePoll(ctx context.Context, pollID uuid.UUID) error {
	return c.post(ctx, "/polls/"+pollID.String()+"/close", nil, nil)
}

func (c *Client) Expenses(ctx context.Context, planID uuid.UUID) ([]Expense, error) {
	var out []Expense
	return out, c.get(ctx, "/expenses/"+planID.String(), nil, &out)
}

func (c *Client) CreateExpense(ctx context.Context, planID uuid.UUID, expense NewExpense) (uuid.UUID, error) {
	var out created
	if err := c.post(ctx, "/expenses/"+planID.String(), expense, &out); err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

// ExpenseSummary returns the caller's balance per currency.
func (c *Client) ExpenseSummary(ctx context.Context, planID uuid.UUID) ([]ExpenseSummary, error) {
	var out []ExpenseSummary
	return out, c.get(ctx, "/expenses/"+planID.String()+"/summary", nil, &out)
}

// MarkPaid settles one allocation of an expense.
func (c *Client) MarkPaid(ctx context.Context, expenseID, allocationID uuid.UUID) error {
	path := "/expenses/" + expenseID.String() + "/allocations/" + allocationID.String() + "/paid"
	return c.post(ctx, path, nil, nil)
}

func (c *Client) Notifications(ctx context.Context, unreadOnly bool, limit int) ([]Notification, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}
	var out []Notification
	return out, c.get(ctx, "/notifications", limitQuery(q, limit), &out)
}

func (c *Client) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	return c.post(ctx, "/notifications/"+id.String()+"/read", nil, nil)
}

// Upload stores a file and returns its reference.
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader) (FileInfo, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return FileInfo{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return FileInfo{}, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return FileInfo{}, fmt.Errorf("build upload: %w", err)
	}

	var out FileInfo
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/files",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
		out:         &out,
	})
	return out, err
}

func planPath(planID uuid.UUID, parts ...string) string {
	u, _ := url.JoinPath("/travel-plans", append([]string{planID.String()}, parts...)...)
	return u
}

func limitQuery(q url.Values, limit int) url.Values {
	if limit <= 0 {
		return q
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("limit", strconv.Itoa(limit))
	return q
}
