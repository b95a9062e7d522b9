package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
)

// PlanSpec is the owner-supplied description of a new plan.
type PlanSpec struct {
	Title               string
	Description         string
	Category            string
	Visibility          Visibility
	Origin              string
	Destination         string
	DestinationTimezone string
	StartDate           time.Time
	EndDate             time.Time
	Transportation      string
	Accommodation       string
	EstimatedBudget     int64
	MinMembers          int
	MaxMembers          int
	GenderPreference    string
	MinAge              int
	MaxAge              int
	Languages           []string
	ImagePaths          []string
}

// Plan is the trip aggregate. Its memberships live in their own table and
// are passed into the methods that need them, so a command loads only the
// rows it touches.
type Plan struct {
	sharedDomain.BaseAggregateRoot
	ownerID            uuid.UUID
	spec               PlanSpec
	status             PlanStatus
	cancellationReason string
	startedAt          *time.Time
	completedAt        *time.Time
	cancelledAt        *time.Time
}

// NewPlan validates spec and returns the plan in NEW together with the
// owner's OWNED membership. The two are only ever saved together.
func NewPlan(ownerID uuid.UUID, spec PlanSpec) (*Plan, *Membership, error) {
	spec.Title = strings.TrimSpace(spec.Title)
	if spec.Title == "" {
		return nil, nil, ErrEmptyTitle
	}
	if spec.MaxMembers < 2 {
		return nil, nil, ErrInvalidCapacity
	}
	if spec.MinMembers == 0 {
		spec.MinMembers = 2
	}
	if spec.MinMembers < 2 || spec.MinMembers > spec.MaxMembers {
		return nil, nil, ErrInvalidCapacity
	}
	if spec.Visibility == "" {
		spec.Visibility = VisibilityPublic
	}
	if !spec.Visibility.IsValid() {
		return nil, nil, ErrInvalidStatus
	}
	if spec.EndDate.Before(spec.StartDate) {
		return nil, nil, ErrInvalidDates
	}
	if spec.MinAge < 0 || spec.MaxAge < 0 || (spec.MaxAge > 0 && spec.MinAge > spec.MaxAge) {
		return nil, nil, ErrInvalidAgeRange
	}
	spec.StartDate = spec.StartDate.UTC()
	spec.EndDate = spec.EndDate.UTC()

	p := &Plan{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		ownerID:           ownerID,
		spec:              spec,
		status:            PlanNew,
	}
	owner := newMembership(p.ID(), ownerID, StatusOwned)
	p.Record(&PlanCreated{
		BaseEvent:  p.event(RoutingKeyPlanCreated),
		OwnerID:    ownerID,
		Title:      spec.Title,
		Visibility: spec.Visibility,
		MaxMembers: spec.MaxMembers,
		StartDate:  spec.StartDate,
	})
	return p, owner, nil
}

// PlanState is the persisted form of a plan.
type PlanState struct {
	ID                 uuid.UUID
	OwnerID            uuid.UUID
	Spec               PlanSpec
	Status             PlanStatus
	CancellationReason string
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RehydratePlan rebuilds a stored plan without recording events.
func RehydratePlan(s PlanState) *Plan {
	return &Plan{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt)),
		ownerID:            s.OwnerID,
		spec:               s.Spec,
		status:             s.Status,
		cancellationReason: s.CancellationReason,
		startedAt:          s.StartedAt,
		completedAt:        s.CompletedAt,
		cancelledAt:        s.CancelledAt,
	}
}

func (p *Plan) OwnerID() uuid.UUID         { return p.ownerID }
func (p *Plan) Spec() PlanSpec             { return p.spec }
func (p *Plan) Title() string              { return p.spec.Title }
func (p *Plan) Visibility() Visibility     { return p.spec.Visibility }
func (p *Plan) MaxMembers() int            { return p.spec.MaxMembers }
func (p *Plan) Status() PlanStatus         { return p.status }
func (p *Plan) CancellationReason() string { return p.cancellationReason }
func (p *Plan) StartedAt() *time.Time      { return p.startedAt }
func (p *Plan) CompletedAt() *time.Time    { return p.completedAt }
func (p *Plan) CancelledAt() *time.Time    { return p.cancelledAt }
func (p *Plan) IsOwner(userID uuid.UUID) bool {
	return p.ownerID == userID
}

// State snapshots the plan for persistence.
func (p *Plan) State() PlanState {
	return PlanState{
		ID:                 p.ID(),
		OwnerID:            p.ownerID,
		Spec:               p.spec,
		Status:             p.status,
		CancellationReason: p.cancellationReason,
		StartedAt:          p.startedAt,
		CompletedAt:        p.completedAt,
		CancelledAt:        p.cancelledAt,
		CreatedAt:          p.CreatedAt(),
		UpdatedAt:          p.UpdatedAt(),
	}
}

// Apply creates an APPLIED membership. The plan must be NEW and PUBLIC and
// have a free slot given activeCount.
func (p *Plan) Apply(userID uuid.UUID, activeCount int) (*Membership, error) {
	if p.status != PlanNew || p.spec.Visibility != VisibilityPublic {
		return nil, ErrPlanNotOpen
	}
	if err := p.ensureCapacity(activeCount); err != nil {
		return nil, err
	}
	m := newMembership(p.ID(), userID, StatusApplied)
	p.recordMembership(m, "")
	return m, nil
}

// Invite creates an INVITED membership on a NEW plan.
func (p *Plan) Invite(userID uuid.UUID) (*Membership, error) {
	if p.status != PlanNew {
		return nil, ErrPlanNotOpen
	}
	m := newMembership(p.ID(), userID, StatusInvited)
	p.recordMembership(m, "")
	return m, nil
}

// CancelApplication withdraws an APPLIED membership.
func (p *Plan) CancelApplication(m *Membership) error {
	return p.move(m, StatusAppliedCancelled)
}

// DecideApplication accepts or refuses an application. Acceptance re-checks
// capacity against activeCount, which the caller reads under the plan lock.
func (p *Plan) DecideApplication(m *Membership, d Decision, activeCount int) error {
	if m.Status() != StatusApplied {
		return ErrInvalidTransition
	}
	if d == DecisionRefuse {
		return p.move(m, StatusAppliedRefused)
	}
	if !p.status.IsOpen() {
		return ErrPlanNotOpen
	}
	if err := p.ensureCapacity(activeCount); err != nil {
		return err
	}
	return p.move(m, StatusAppliedAccepted)
}

// DecideInvitation is DecideApplication for the invitee's own verdict.
func (p *Plan) DecideInvitation(m *Membership, d Decision, activeCount int) error {
	if m.Status() != StatusInvited {
		return ErrInvalidTransition
	}
	if d == DecisionRefuse {
		return p.move(m, StatusInvitedRefused)
	}
	if !p.status.IsOpen() {
		return ErrPlanNotOpen
	}
	if err := p.ensureCapacity(activeCount); err != nil {
		return err
	}
	return p.move(m, StatusInvitedAccepted)
}

// Start moves NEW to IN_PROGRESS and refuses every membership still
// pending, since nobody can join a trip that has begun.
func (p *Plan) Start(memberships []*Membership, automatic bool) error {
	if !p.status.CanTransitionTo(PlanInProgress) {
		return ErrInvalidTransition
	}
	var members, refused []uuid.UUID
	for _, m := range memberships {
		switch m.Status() {
		case StatusApplied:
			if err := p.move(m, StatusAppliedRefused); err != nil {
				return err
			}
			refused = append(refused, m.UserID())
		case StatusInvited:
			if err := p.move(m, StatusInvitedRefused); err != nil {
				return err
			}
			refused = append(refused, m.UserID())
		default:
			if m.IsActive() {
				members = append(members, m.UserID())
			}
		}
	}

	now := time.Now().UTC()
	p.status = PlanInProgress
	p.startedAt = &now
	p.Record(&PlanStarted{
		BaseEvent: p.event(RoutingKeyPlanStarted),
		OwnerID:   p.ownerID,
		Title:     p.spec.Title,
		Members:   members,
		Refused:   refused,
		Automatic: automatic,
	})
	return nil
}

// Complete moves IN_PROGRESS to COMPLETED.
func (p *Plan) Complete(memberships []*Membership) error {
	if !p.status.CanTransitionTo(PlanCompleted) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	p.status = PlanCompleted
	p.completedAt = &now
	p.Record(&PlanCompletedEvent{
		BaseEvent: p.event(RoutingKeyPlanCompleted),
		OwnerID:   p.ownerID,
		Title:     p.spec.Title,
		Members:   activeUsers(memberships),
	})
	return nil
}

// Close cancels an open plan. Membership rows are left as they are; the
// current members other than the owner are named in the event.
func (p *Plan) Close(reason string, memberships []*Membership) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if !p.status.CanTransitionTo(PlanCancelled) {
		return ErrPlanNotOpen
	}

	var recipients []uuid.UUID
	for _, m := range memberships {
		if m.Status().IsCurrent() && m.UserID() != p.ownerID {
			recipients = append(recipients, m.UserID())
		}
	}

	now := time.Now().UTC()
	p.status = PlanCancelled
	p.cancellationReason = reason
	p.cancelledAt = &now
	p.Record(&PlanClosed{
		BaseEvent:  p.event(RoutingKeyPlanClosed),
		OwnerID:    p.ownerID,
		Title:      p.spec.Title,
		Reason:     reason,
		Recipients: recipients,
	})
	return nil
}

func (p *Plan) ensureCapacity(activeCount int) error {
	if activeCount >= p.spec.MaxMembers {
		return ErrPlanFull
	}
	return nil
}

func (p *Plan) move(m *Membership, to MembershipStatus) error {
	if m.PlanID() != p.ID() {
		return ErrMembershipNotFound
	}
	from := m.Status()
	if err := m.Transition(to); err != nil {
		return err
	}
	p.recordMembership(m, from)
	return nil
}

func (p *Plan) recordMembership(m *Membership, from MembershipStatus) {
	p.Record(&MembershipChanged{
		BaseEvent: p.event(membershipRoutingKey(m.Status())),
		UserID:    m.UserID(),
		OwnerID:   p.ownerID,
		Title:     p.spec.Title,
		From:      from,
		To:        m.Status(),
	})
}

func (p *Plan) event(routingKey string) sharedDomain.BaseEvent {
	return sharedDomain.NewBaseEvent(p.ID(), AggregateType, routingKey)
}

// CountActive counts memberships in the active subset.
func CountActive(memberships []*Membership) int {
	n := 0
	for _, m := range memberships {
		if m.IsActive() {
			n++
		}
	}
	return n
}

func activeUsers(memberships []*Membership) []uuid.UUID {
	var out []uuid.UUID
	for _, m := range memberships {
		if m.IsActive() {
			out = append(out, m.UserID())
		}
	}
	return out
}
