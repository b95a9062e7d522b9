package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/caravan/internal/client/api"
	"github.com/felixgeelhaar/caravan/internal/client/session"
	planning "github.com/felixgeelhaar/caravan/internal/planning/domain"
)

// ErrNotInitialized is returned when a command runs without an App.
var ErrNotInitialized = errors.New("application not initialized")

// Require returns the app, failing when it has not been wired.
func Require() (*App, error) {
	if app == nil || app.Client == nil {
		return nil, ErrNotInitialized
	}
	return app, nil
}

// ParseID parses a uuid argument named what.
func ParseID(what, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", what, err)
	}
	return id, nil
}

// Describe turns a client error into a line for the terminal.
func Describe(err error) string {
	var apiErr *api.Error
	switch {
	case errors.Is(err, session.ErrNoSession):
		return "Not signed in. Run: caravan login"
	case errors.As(err, &apiErr) && apiErr.Kind == api.KindUnauthorized:
		if apiErr.Code == "invalid_credentials" {
			return "Wrong email or password."
		}
		return "Your session has ended. Run: caravan login"
	case errors.Is(err, api.ErrCircuitOpen):
		return "The server is failing; requests are paused for a moment. Try again shortly."
	case errors.As(err, &apiErr):
		switch apiErr.Kind {
		case api.KindNetwork:
			return "Cannot reach the server: " + apiErr.Error()
		case api.KindValidation:
			return validationMessage(apiErr)
		case api.KindServer:
			return "The server failed to handle the request. Try again."
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return err.Error()
}

func validationMessage(e *api.Error) string {
	var b strings.Builder
	b.WriteString("Invalid input")
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		fmt.Fprintf(&b, "\n  %s: %s", field, e.Fields[field])
	}
	return b.String()
}

// PrintPlans writes a plan list.
func PrintPlans(w io.Writer, heading string, plans []api.PlanSummary) {
	if len(plans) == 0 {
		fmt.Fprintln(w, "No plans found.")
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", heading, len(plans))
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, p := range plans {
		PrintPlan(w, p)
		fmt.Fprintln(w)
	}
}

// PrintPlan writes one plan row.
func PrintPlan(w io.Writer, p api.PlanSummary) {
	fmt.Fprintf(w, "%s %s%s\n", StatusIcon(p.Status), p.Title, viewerBadge(p.ViewerStatus))
	fmt.Fprintf(w, "   ID: %s\n", p.ID)
	if p.Destination != "" {
		fmt.Fprintf(w, "   To: %s\n", p.Destination)
	}
	fmt.Fprintf(w, "   Dates: %s to %s\n", p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "   Members: %d/%d\n", p.ActiveCount, p.MaxMembers)
	if p.OwnerName != "" {
		fmt.Fprintf(w, "   Owner: %s\n", p.OwnerName)
	}
}

// StatusIcon marks a plan's lifecycle status.
func StatusIcon(s planning.PlanStatus) string {
	switch s {
	case planning.PlanInProgress:
		return "[>]"
	case planning.PlanCompleted:
		return "[x]"
	case planning.PlanCancelled:
		return "[-]"
	default:
		return "[ ]"
	}
}

func viewerBadge(s planning.MembershipStatus) string {
	if s == "" {
		return ""
	}
	return " (" + strings.ToLower(string(s)) + ")"
}

// Money formats minor units, e.g. 1250 EUR as "12.50 EUR".
func Money(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, currency)
}

// Member names a plan member for display.
func Member(m api.Member) string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		name = m.UserID.String()
	}
	return name
}
