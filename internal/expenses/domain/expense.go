package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrExpenseNotFound      = errors.New("expense not found")
	ErrAllocationNotFound   = errors.New("allocation not found")
	ErrEmptyDescription     = errors.New("description cannot be empty")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidCurrency      = errors.New("currency must be a 3-letter code")
	ErrNoParticipants       = errors.New("an expense needs at least one participant")
	ErrDuplicateParticipant = errors.New("participant listed twice")
	ErrAllocationMismatch   = errors.New("shares must add up to the total")
	ErrParticipantNotMember = errors.New("participant is not an active member of this plan")
	ErrNotPayer             = errors.New("only the payer may do this")
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Share is one participant's portion in minor currency units.
type Share struct {
	UserID      uuid.UUID
	AmountMinor int64
}

// EqualSplit divides total evenly. The remainder goes to the payer when
// the payer participates, otherwise to the first participant.
func EqualSplit(total int64, participants []uuid.UUID, payerID uuid.UUID) []Share {
	if len(participants) == 0 {
		return nil
	}
	n := int64(len(participants))
	each, rest := total/n, total%n

	shares := make([]Share, len(participants))
	target := 0
	for i, id := range participants {
		shares[i] = Share{UserID: id, AmountMinor: each}
		if id == payerID {
			target = i
		}
	}
	shares[target].AmountMinor += rest
	return shares
}

// Allocation is what one participant owes the payer.
type Allocation struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	AmountMinor int64
	Paid        bool
	PaidAt      *time.Time
}

// ExpenseSpec describes a new expense.
type ExpenseSpec struct {
	PlanID      uuid.UUID
	PayerID     uuid.UUID
	Description string
	Purpose     string
	TotalMinor  int64
	Currency    string
	ExpenseDate time.Time
	ReceiptPath string
}

// Expense is a cost paid by one member and shared with others.
type Expense struct {
	sharedDomain.BaseAggregateRoot
	spec        ExpenseSpec
	allocations []Allocation
}

// NewExpense validates the spec and shares. The payer's own share is
// recorded as already paid.
func NewExpense(spec ExpenseSpec, shares []Share) (*Expense, error) {
	spec.Description = strings.TrimSpace(spec.Description)
	spec.Purpose = strings.TrimSpace(spec.Purpose)
	spec.Currency = strings.ToUpper(strings.TrimSpace(spec.Currency))
	switch {
	case spec.Description == "":
		return nil, ErrEmptyDescription
	case spec.TotalMinor <= 0:
		return nil, ErrInvalidAmount
	case !currencyCode.MatchString(spec.Currency):
		return nil, ErrInvalidCurrency
	case len(shares) == 0:
		return nil, ErrNoParticipants
	}
	if spec.ExpenseDate.IsZero() {
		spec.ExpenseDate = time.Now()
	}
	spec.ExpenseDate = spec.ExpenseDate.UTC()

	e := &Expense{BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(), spec: spec}
	seen := make(map[uuid.UUID]bool, len(shares))
	var sum int64
	now := e.CreatedAt()
	for _, s := range shares {
		if seen[s.UserID] {
			return nil, ErrDuplicateParticipant
		}
		if s.AmountMinor < 0 {
			return nil, ErrInvalidAmount
		}
		seen[s.UserID] = true
		sum += s.AmountMinor

		a := Allocation{ID: uuid.New(), UserID: s.UserID, AmountMinor: s.AmountMinor}
		if s.UserID == spec.PayerID {
			a.Paid = true
			a.PaidAt = &now
		}
		e.allocations = append(e.allocations, a)
	}
	if sum != spec.TotalMinor {
		return nil, ErrAllocationMismatch
	}

	e.Record(newExpenseEvent(e, RoutingKeyExpenseRecorded, uuid.Nil))
	return e, nil
}

// ExpenseState is the persisted form of an expense.
type ExpenseState struct {
	ID          uuid.UUID
	Spec        ExpenseSpec
	Allocations []Allocation
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RehydrateExpense rebuilds a stored expense.
func RehydrateExpense(s ExpenseState) *Expense {
	return &Expense{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt)),
		spec:        s.Spec,
		allocations: s.Allocations,
	}
}

func (e *Expense) Spec() ExpenseSpec         { return e.spec }
func (e *Expense) PlanID() uuid.UUID         { return e.spec.PlanID }
func (e *Expense) PayerID() uuid.UUID        { return e.spec.PayerID }
func (e *Expense) TotalMinor() int64         { return e.spec.TotalMinor }
func (e *Expense) Currency() string          { return e.spec.Currency }
func (e *Expense) Allocations() []Allocation { return e.allocations }

// Participants lists the users sharing the expense.
func (e *Expense) Participants() []uuid.UUID {
	out := make([]uuid.UUID, len(e.allocations))
	for i, a := range e.allocations {
		out[i] = a.UserID
	}
	return out
}

// MarkPaid records that the payer received a participant's share.
// Marking an already paid allocation is a no-op.
func (e *Expense) MarkPaid(allocationID, actorID uuid.UUID) error {
	if actorID != e.spec.PayerID {
		return ErrNotPayer
	}
	for i := range e.allocations {
		a := &e.allocations[i]
		if a.ID != allocationID {
			continue
		}
		if a.Paid {
			return nil
		}
		now := time.Now().UTC()
		a.Paid = true
		a.PaidAt = &now
		e.Record(newExpenseEvent(e, RoutingKeyAllocationPaid, a.UserID))
		return nil
	}
	return ErrAllocationNotFound
}
