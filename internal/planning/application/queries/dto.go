package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/google/uuid"
)

// PlanSummaryDTO is one row of a plan list.
type PlanSummaryDTO struct {
	ID           uuid.UUID               `json:"id"`
	OwnerID      uuid.UUID               `json:"ownerId"`
	OwnerName    string                  `json:"ownerName"`
	Title        string                  `json:"title"`
	Category     string                  `json:"category,omitempty"`
	Visibility   domain.Visibility       `json:"visibility"`
	Destination  string                  `json:"destination,omitempty"`
	StartDate    time.Time               `json:"startDate"`
	EndDate      time.Time               `json:"endDate"`
	Status       domain.PlanStatus       `json:"status"`
	MaxMembers   int                     `json:"maxMembers"`
	ActiveCount  int                     `json:"activeCount"`
	ImagePaths   []string                `json:"imagePaths,omitempty"`
	ViewerStatus domain.MembershipStatus `json:"viewerStatus,omitempty"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

// MemberDTO is a membership joined with the user's display data.
type MemberDTO struct {
	UserID     uuid.UUID               `json:"userId"`
	FirstName  string                  `json:"firstName"`
	LastName   string                  `json:"lastName"`
	AvatarPath string                  `json:"avatarPath,omitempty"`
	Status     domain.MembershipStatus `json:"status"`
	UpdatedAt  time.Time               `json:"updatedAt"`
}

// PlanDTO is the full plan as a viewer sees it.
type PlanDTO struct {
	ID                  uuid.UUID         `json:"id"`
	OwnerID             uuid.UUID         `json:"ownerId"`
	Title               string            `json:"title"`
	Description         string            `json:"description,omitempty"`
	Category            string            `json:"category,omitempty"`
	Visibility          domain.Visibility `json:"visibility"`
	Origin              string            `json:"origin,omitempty"`
	Destination         string            `json:"destination,omitempty"`
	DestinationTimezone string            `json:"destinationTimezone,omitempty"`
	StartDate           time.Time         `json:"startDate"`
	EndDate             time.Time         `json:"endDate"`
	Transportation      string            `json:"transportation,omitempty"`
	Accommodation       string            `json:"accommodation,omitempty"`
	EstimatedBudget     int64             `json:"estimatedBudget,omitempty"`
	MinMembers          int               `json:"minMembers"`
	MaxMembers          int               `json:"maxMembers"`
	GenderPreference    string            `json:"genderPreference,omitempty"`
	MinAge              int               `json:"minAge,omitempty"`
	MaxAge              int               `json:"maxAge,omitempty"`
	Languages           []string          `json:"languages,omitempty"`
	ImagePaths          []string          `json:"imagePaths,omitempty"`
	Status              domain.PlanStatus `json:"status"`
	CancellationReason  string            `json:"cancellationReason,omitempty"`
	StartedAt           *time.Time        `json:"startedAt,omitempty"`
	CompletedAt         *time.Time        `json:"completedAt,omitempty"`
	CancelledAt         *time.Time        `json:"cancelledAt,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// PlanDetailDTO is a plan with its members from one viewer's side.
type PlanDetailDTO struct {
	Plan           PlanDTO                 `json:"plan"`
	Members        []MemberDTO             `json:"members"`
	ActiveCount    int                     `json:"activeCount"`
	ViewerStatus   domain.MembershipStatus `json:"viewerStatus,omitempty"`
	CanCollaborate bool                    `json:"canCollaborate"`
}

// ReadModel serves the list and member views.
type ReadModel interface {
	// Discoverable lists NEW PUBLIC plans the viewer has no membership
	// on, optionally filtered by a keyword on title and destination.
	Discoverable(ctx context.Context, viewerID uuid.UUID, keyword string, limit int) ([]PlanSummaryDTO, error)
	// Current lists plans where the user holds a current-set membership
	// and the plan is NEW or IN_PROGRESS.
	Current(ctx context.Context, userID uuid.UUID) ([]PlanSummaryDTO, error)
	// History lists plans that ended, or where the user's membership did.
	History(ctx context.Context, userID uuid.UUID) ([]PlanSummaryDTO, error)
	Members(ctx context.Context, planID uuid.UUID) ([]MemberDTO, error)
}

func toPlanDTO(p *domain.Plan) PlanDTO {
	s := p.Spec()
	return PlanDTO{
		ID:                  p.ID(),
		OwnerID:             p.OwnerID(),
		Title:               s.Title,
		Description:         s.Description,
		Category:            s.Category,
		Visibility:          s.Visibility,
		Origin:              s.Origin,
		Destination:         s.Destination,
		DestinationTimezone: s.DestinationTimezone,
		StartDate:           s.StartDate,
		EndDate:             s.EndDate,
		Transportation:      s.Transportation,
		Accommodation:       s.Accommodation,
		EstimatedBudget:     s.EstimatedBudget,
		MinMembers:          s.MinMembers,
		MaxMembers:          s.MaxMembers,
		GenderPreference:    s.GenderPreference,
		MinAge:              s.MinAge,
		MaxAge:              s.MaxAge,
		Languages:           s.Languages,
		ImagePaths:          s.ImagePaths,
		Status:              p.Status(),
		CancellationReason:  p.CancellationReason(),
		StartedAt:           p.StartedAt(),
		CompletedAt:         p.CompletedAt(),
		CancelledAt:         p.CancelledAt(),
		CreatedAt:           p.CreatedAt(),
		UpdatedAt:           p.UpdatedAt(),
	}
}
