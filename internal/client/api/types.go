package api

import (
	"time"

	"github.com/google/uuid"

	planning "github.com/felixgeelhaar/caravan/internal/planning/domain"
)

// User is an account as the server reports it.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
}

// Session is a freshly issued token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// PlanSummary is one row of a plan list.
type PlanSummary struct {
	ID           uuid.UUID                 `json:"id"`
	OwnerID      uuid.UUID                 `json:"ownerId"`
	OwnerName    string                    `json:"ownerName"`
	Title        string                    `json:"title"`
	Category     string                    `json:"category,omitempty"`
	Visibility   string                    `json:"visibility"`
	Destination  string                    `json:"destination,omitempty"`
	StartDate    time.Time                 `json:"startDate"`
	EndDate      time.Time                 `json:"endDate"`
	Status       planning.PlanStatus       `json:"status"`
	MaxMembers   int                       `json:"maxMembers"`
	ActiveCount  int                       `json:"activeCount"`
	ImagePaths   []string                  `json:"imagePaths,omitempty"`
	ViewerStatus planning.MembershipStatus `json:"viewerStatus,omitempty"`
	UpdatedAt    time.Time                 `json:"updatedAt"`
}

// Plan is the full plan record.
type Plan struct {
	ID                  uuid.UUID           `json:"id"`
	OwnerID             uuid.UUID           `json:"ownerId"`
	Title               string              `json:"title"`
	Description         string              `json:"description,omitempty"`
	Category            string              `json:"category,omitempty"`
	Visibility          string              `json:"visibility"`
	Origin              string              `json:"origin,omitempty"`
	Destination         string              `json:"destination,omitempty"`
	DestinationTimezone string              `json:"destinationTimezone,omitempty"`
	StartDate           time.Time           `json:"startDate"`
	EndDate             time.Time           `json:"endDate"`
	Transportation      string              `json:"transportation,omitempty"`
	Accommodation       string              `json:"accommodation,omitempty"`
	EstimatedBudget     int64               `json:"estimatedBudget,omitempty"`
	MinMembers          int                 `json:"minMembers"`
	MaxMembers          int                 `json:"maxMembers"`
	Languages           []string            `json:"languages,omitempty"`
	ImagePaths          []string            `json:"imagePaths,omitempty"`
	Status              planning.PlanStatus `json:"status"`
	CancellationReason  string              `json:"cancellationReason,omitempty"`
	StartedAt           *time.Time          `json:"startedAt,omitempty"`
	CompletedAt         *time.Time          `json:"completedAt,omitempty"`
	CancelledAt         *time.Time          `json:"cancelledAt,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// Member is one membership on a plan.
type Member struct {
	UserID     uuid.UUID                 `json:"userId"`
	FirstName  string                    `json:"firstName"`
	LastName   string                    `json:"lastName"`
	AvatarPath string                    `json:"avatarPath,omitempty"`
	Status     planning.MembershipStatus `json:"status"`
	UpdatedAt  time.Time                 `json:"updatedAt"`
}

// PlanDetail is a plan with its members from the caller's side.
type PlanDetail struct {
	Plan           Plan                      `json:"plan"`
	Members        []Member                  `json:"members"`
	ActiveCount    int                       `json:"activeCount"`
	ViewerStatus   planning.MembershipStatus `json:"viewerStatus,omitempty"`
	CanCollaborate bool                      `json:"canCollaborate"`
}

// NewPlan is the body of CreatePlan.
type NewPlan struct {
	Title               string    `json:"title"`
	Description         string    `json:"description,omitempty"`
	Category            string    `json:"category,omitempty"`
	Visibility          string    `json:"visibility,omitempty"`
	Origin              string    `json:"origin,omitempty"`
	Destination         string    `json:"destination"`
	DestinationTimezone string    `json:"destinationTimezone,omitempty"`
	StartDate           time.Time `json:"startDate"`
	EndDate             time.Time `json:"endDate"`
	Transportation      string    `json:"transportation,omitempty"`
	Accommodation       string    `json:"accommodation,omitempty"`
	EstimatedBudget     int64     `json:"estimatedBudget,omitempty"`
	MinMembers          int       `json:"minMembers,omitempty"`
	MaxMembers          int       `json:"maxMembers"`
	Languages           []string  `json:"languages,omitempty"`
	ImagePaths          []string  `json:"imagePaths,omitempty"`
}

// Membership is the result of a membership transition.
type Membership struct {
	PlanID uuid.UUID                 `json:"planId"`
	UserID uuid.UUID                 `json:"userId"`
	Status planning.MembershipStatus `json:"status"`
}

// ChatMessage is one stored chat line.
type ChatMessage struct {
	ID           uuid.UUID `json:"id"`
	PlanID       uuid.UUID `json:"planId"`
	SenderID     uuid.UUID `json:"senderId"`
	SenderName   string    `json:"senderDisplayName"`
	SenderAvatar string    `json:"senderAvatarRef,omitempty"`
	Content      string    `json:"content"`
	MessageType  string    `json:"messageType"`
	SentAt       time.Time `json:"sentAt"`
}

// PollOption is an answer with its vote count.
type PollOption struct {
	ID    uuid.UUID `json:"id"`
	Text  string    `json:"text"`
	Votes int       `json:"votes"`
}

// Poll is a poll as the caller sees it.
type Poll struct {
	ID         uuid.UUID    `json:"id"`
	PlanID     uuid.UUID    `json:"planId"`
	CreatorID  uuid.UUID    `json:"creatorId"`
	Question   string       `json:"question"`
	Active     bool         `json:"active"`
	Options    []PollOption `json:"options"`
	TotalVotes int          `json:"totalVotes"`
	ViewerVote *uuid.UUID   `json:"viewerVote,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// Allocation is one participant's share of an expense.
type Allocation struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"userId"`
	AmountMinor int64      `json:"amountMinor"`
	Paid        bool       `json:"paid"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
}

// Expense is a shared cost with its allocations.
type Expense struct {
	ID          uuid.UUID    `json:"id"`
	PlanID      uuid.UUID    `json:"planId"`
	PayerID     uuid.UUID    `json:"payerId"`
	Description string       `json:"description"`
	Purpose     string       `json:"purpose,omitempty"`
	TotalMinor  int64        `json:"totalMinor"`
	Currency    string       `json:"currency"`
	ExpenseDate time.Time    `json:"expenseDate"`
	ReceiptPath string       `json:"receiptPath,omitempty"`
	Allocations []Allocation `json:"allocations"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Share fixes one participant's amount on a new expense.
type Share struct {
	UserID      uuid.UUID `json:"userId"`
	AmountMinor int64     `json:"amountMinor"`
}

// NewExpense is the body of CreateExpense. With neither Shares nor
// Participants the total is split over every active member.
type NewExpense struct {
	Description  string      `json:"description"`
	Purpose      string      `json:"purpose,omitempty"`
	TotalMinor   int64       `json:"totalMinor"`
	Currency     string      `json:"currency"`
	ExpenseDate  *time.Time  `json:"expenseDate,omitempty"`
	ReceiptPath  string      `json:"receiptPath,omitempty"`
	Participants []uuid.UUID `json:"participants,omitempty"`
	Shares       []Share     `json:"shares,omitempty"`
}

// ExpenseSummary is the caller's position in one currency.
type ExpenseSummary struct {
	Currency    string `json:"currency"`
	Paid        int64  `json:"paid"`
	Share       int64  `json:"share"`
	Outstanding int64  `json:"outstanding"`
	OwedToYou   int64  `json:"owedToYou"`
	Balance     int64  `json:"balance"`
}

// Notification is one inbox entry.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	PlanID    uuid.UUID  `json:"planId,omitempty"`
	Kind      string     `json:"kind"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// FileInfo describes an uploaded file. Path is the opaque reference other
// records store.
type FileInfo struct {
	Path     string `json:"path"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

// PlanHint is a push notice that a plan changed.
type PlanHint struct {
	PlanID     uuid.UUID `json:"planId"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurredAt"`
}

type created struct {
	ID uuid.UUID `json:"id"`
}
