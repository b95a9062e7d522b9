package domain

import "fmt"

// MembershipStatus is a user's standing on one plan.
type MembershipStatus string

const (
	StatusOwned            MembershipStatus = "OWNED"
	StatusApplied          MembershipStatus = "APPLIED"
	StatusAppliedAccepted  MembershipStatus = "APPLIED_ACCEPTED"
	StatusAppliedRefused   MembershipStatus = "APPLIED_REFUSED"
	StatusAppliedCancelled MembershipStatus = "APPLIED_CANCELLED"
	StatusInvited          MembershipStatus = "INVITED"
	StatusInvitedAccepted  MembershipStatus = "INVITED_ACCEPTED"
	StatusInvitedRefused   MembershipStatus = "INVITED_REFUSED"
)

// AllMembershipStatuses lists every status in declaration order.
var AllMembershipStatuses = []MembershipStatus{
	StatusOwned, StatusApplied, StatusAppliedAccepted, StatusAppliedRefused,
	StatusAppliedCancelled, StatusInvited, StatusInvitedAccepted, StatusInvitedRefused,
}

var transitions = map[MembershipStatus][]MembershipStatus{
	StatusApplied: {StatusAppliedAccepted, StatusAppliedRefused, StatusAppliedCancelled},
	StatusInvited: {StatusInvitedAccepted, StatusInvitedRefused},
}

func (s MembershipStatus) String() string { return string(s) }

func (s MembershipStatus) IsValid() bool {
	switch s {
	case StatusOwned, StatusApplied, StatusAppliedAccepted, StatusAppliedRefused,
		StatusAppliedCancelled, StatusInvited, StatusInvitedAccepted, StatusInvitedRefused:
		return true
	}
	return false
}

// IsActive reports membership that counts toward capacity and unlocks the
// collaboration features.
func (s MembershipStatus) IsActive() bool {
	return s == StatusOwned || s == StatusAppliedAccepted || s == StatusInvitedAccepted
}

// IsPending reports a membership awaiting a decision.
func (s MembershipStatus) IsPending() bool {
	return s == StatusApplied || s == StatusInvited
}

// IsTerminal reports the refused and cancelled statuses. OWNED has no
// outgoing edge either but is not terminal: it stays active for good.
func (s MembershipStatus) IsTerminal() bool {
	return s == StatusAppliedRefused || s == StatusAppliedCancelled || s == StatusInvitedRefused
}

// IsCurrent reports statuses that tie a user to an open plan: a user holds
// at most one of these across all NEW or IN_PROGRESS plans.
func (s MembershipStatus) IsCurrent() bool {
	return s.IsActive() || s.IsPending()
}

// LegalTransitions returns the statuses s may move to. The result is a copy.
func (s MembershipStatus) LegalTransitions() []MembershipStatus {
	return append([]MembershipStatus(nil), transitions[s]...)
}

func (s MembershipStatus) CanTransitionTo(target MembershipStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// LegalInitialStatuses are the statuses a membership may be created with.
func LegalInitialStatuses() []MembershipStatus {
	return []MembershipStatus{StatusOwned, StatusApplied, StatusInvited}
}

// CurrentStatuses is the set IsCurrent accepts, for SQL IN clauses.
func CurrentStatuses() []MembershipStatus {
	return []MembershipStatus{StatusOwned, StatusApplied, StatusAppliedAccepted, StatusInvited, StatusInvitedAccepted}
}

// ActiveStatuses is the set IsActive accepts.
func ActiveStatuses() []MembershipStatus {
	return []MembershipStatus{StatusOwned, StatusAppliedAccepted, StatusInvitedAccepted}
}

func ParseMembershipStatus(s string) (MembershipStatus, error) {
	status := MembershipStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown membership status %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// PlanStatus is the lifecycle phase of a plan.
type PlanStatus string

const (
	PlanNew        PlanStatus = "NEW"
	PlanInProgress PlanStatus = "IN_PROGRESS"
	PlanCompleted  PlanStatus = "COMPLETED"
	PlanCancelled  PlanStatus = "CANCELLED"
)

func (s PlanStatus) String() string { return string(s) }

func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanNew, PlanInProgress, PlanCompleted, PlanCancelled:
		return true
	}
	return false
}

// IsOpen reports the phases in which memberships still matter for I2.
func (s PlanStatus) IsOpen() bool {
	return s == PlanNew || s == PlanInProgress
}

func (s PlanStatus) IsTerminal() bool {
	return s == PlanCompleted || s == PlanCancelled
}

func (s PlanStatus) CanTransitionTo(target PlanStatus) bool {
	switch s {
	case PlanNew:
		return target == PlanInProgress || target == PlanCancelled
	case PlanInProgress:
		return target == PlanCompleted || target == PlanCancelled
	default:
		return false
	}
}

func ParsePlanStatus(s string) (PlanStatus, error) {
	status := PlanStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown plan status %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// Visibility controls whether a plan appears in discovery and accepts
// applications.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

func (v Visibility) IsValid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(s)
	if !v.IsValid() {
		return "", fmt.Errorf("%w: unknown visibility %q", ErrInvalidStatus, s)
	}
	return v, nil
}

// Decision is an accept or refuse verdict on a pending membership.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionRefuse Decision = "refuse"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionAccept, DecisionRefuse:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown decision %q", ErrInvalidStatus, s)
}
