package api

import (
	"net/http"
	"time"

	planCommands "github.com/felixgeelhaar/caravan/internal/planning/application/commands"
	planQueries "github.com/felixgeelhaar/caravan/internal/planning/application/queries"
	planningDomain "github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/google/uuid"
)

const (
	acceptDecision = planningDomain.DecisionAccept
	refuseDecision = planningDomain.DecisionRefuse
)

type createPlanRequest struct {
	Title               string    `json:"title" validate:"required,max=200"`
	Description         string    `json:"description" validate:"max=5000"`
	Category            string    `json:"category" validate:"max=50"`
	Visibility          string    `json:"visibility" validate:"omitempty,oneof=PUBLIC PRIVATE"`
	Origin              string    `json:"origin" validate:"max=200"`
	Destination         string    `json:"destination" validate:"required,max=200"`
	DestinationTimezone string    `json:"destinationTimezone" validate:"omitempty,timezone"`
	StartDate           time.Time `json:"startDate" validate:"required"`
	EndDate             time.Time `json:"endDate" validate:"required"`
	Transportation      string    `json:"transportation" validate:"max=100"`
	Accommodation       string    `json:"accommodation" validate:"max=100"`
	EstimatedBudget     int64     `json:"estimatedBudget" validate:"min=0"`
	MinMembers          int       `json:"minMembers" validate:"min=0"`
	MaxMembers          int       `json:"maxMembers" validate:"required,min=2,max=100"`
	GenderPreference    string    `json:"genderPreference" validate:"max=20"`
	MinAge              int       `json:"minAge" validate:"min=0,max=120"`
	MaxAge              int       `json:"maxAge" validate:"min=0,max=120"`
	Languages           []string  `json:"languages" validate:"max=10,dive,max=50"`
	ImagePaths          []string  `json:"imagePaths" validate:"max=10,dive,max=300"`
}

func (req createPlanRequest) spec() planningDomain.PlanSpec {
	visibility := planningDomain.Visibility(req.Visibility)
	if visibility == "" {
		visibility = planningDomain.VisibilityPublic
	}
	return planningDomain.PlanSpec{
		Title:               req.Title,
		Description:         req.Description,
		Category:            req.Category,
		Visibility:          visibility,
		Origin:              req.Origin,
		Destination:         req.Destination,
		DestinationTimezone: req.DestinationTimezone,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		Transportation:      req.Transportation,
		Accommodation:       req.Accommodation,
		EstimatedBudget:     req.EstimatedBudget,
		MinMembers:          req.MinMembers,
		MaxMembers:          req.MaxMembers,
		GenderPreference:    req.GenderPreference,
		MinAge:              req.MinAge,
		MaxAge:              req.MaxAge,
		Languages:           req.Languages,
		ImagePaths:          req.ImagePaths,
	}
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type closePlanRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// MembershipResponse reports a membership after a transition.
type MembershipResponse struct {
	PlanID uuid.UUID `json:"planId"`
	UserID uuid.UUID `json:"userId"`
	Status string    `json:"status"`
}

// CreatedResponse carries the id of a created resource.
type CreatedResponse struct {
	ID uuid.UUID `json:"id"`
}

func writeMembership(w http.ResponseWriter, res *planCommands.MembershipResult) {
	writeJSON(w, http.StatusOK, MembershipResponse{
		PlanID: res.PlanID,
		UserID: res.UserID,
		Status: string(res.Status),
	})
}

func (h *handlers) createPlan(w http.ResponseWriter, r *http.Request) error {
	var req createPlanRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}
	res, err := h.c.CreatePlan.Handle(r.Context(), planCommands.CreatePlanCommand{
		OwnerID: principalFrom(r.Context()).UserID,
		Spec:    req.spec(),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: res.PlanID})
	return nil
}

func (h *handlers) discoverPlans(w http.ResponseWriter, r *http.Request) error {
	return h.listDiscoverable(w, r, "")
}

func (h *handlers) searchPlans(w http.ResponseWriter, r *http.Request) error {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		return badRequest("q is required")
	}
	return h.listDiscoverable(w, r, keyword)
}

func (h *handlers) listDiscoverable(w http.ResponseWriter, r *http.Request, keyword string) error {
	limit, err := intQuery(r, "limit")
	if err != nil {
		return err
	}
	plans, err := h.c.DiscoverPlans.Handle(r.Context(), planQueries.DiscoverPlansQuery{
		ViewerID: principalFrom(r.Context()).UserID,
		Keyword:  keyword,
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(plans))
	return nil
}

func (h *handlers) currentPlans(w http.ResponseWriter, r *http.Request) error {
	return h.myPlans(w, r, planQueries.ScopeCurrent)
}

func (h *handlers) historyPlans(w http.ResponseWriter, r *http.Request) error {
	return h.myPlans(w, r, planQueries.ScopeHistory)
}

func (h *handlers) myPlans(w http.ResponseWriter, r *http.Request, scope planQueries.Scope) error {
	plans, err := h.c.MyPlans.Handle(r.Context(), planQueries.MyPlansQuery{
		UserID: principalFrom(r.Context()).UserID,
		Scope:  scope,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(plans))
	return nil
}

func (h *handlers) checkCurrent(w http.ResponseWriter, r *http.Request) error {
	has, err := h.c.CheckCurrent.Handle(r.Context(), planQueries.CheckCurrentQuery{
		UserID: principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hasCurrentPlan": has})
	return nil
}

func (h *handlers) getPlan(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	plan, err := h.c.GetPlan.Handle(r.Context(), planQueries.GetPlanQuery{
		PlanID:   planID,
		ViewerID: principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, plan)
	return nil
}

func (h *handlers) apply(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	res, err := h.c.Apply.Handle(r.Context(), planCommands.ApplyCommand{
		PlanID: planID,
		UserID: principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	writeMembership(w, res)
	return nil
}

func (h *handlers) cancelApplication(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	res, err := h.c.CancelApplication.Handle(r.Context(), planCommands.CancelApplicationCommand{
		PlanID: planID,
		UserID: principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	writeMembership(w, res)
	return nil
}

func (h *handlers) invite(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	var req inviteRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}
	res, err := h.c.Invite.Handle(r.Context(), planCommands.InviteCommand{
		PlanID:  planID,
		OwnerID: principalFrom(r.Context()).UserID,
		Email:   req.Email,
	})
	if err != nil {
		return err
	}
	writeMembership(w, res)
	return nil
}

func (h *handlers) decideApplication(d planningDomain.Decision) apiHandler {
	return func(w http.ResponseWriter, r *http.Request) error {
		planID, err := uuidParam(r, "id")
		if err != nil {
			return err
		}
		applicantID, err := uuidParam(r, "userId")
		if err != nil {
			return err
		}
		res, err := h.c.DecideApplication.Handle(r.Context(), planCommands.DecideApplicationCommand{
			PlanID:      planID,
			OwnerID:     principalFrom(r.Context()).UserID,
			ApplicantID: applicantID,
			Decision:    d,
		})
		if err != nil {
			return err
		}
		writeMembership(w, res)
		return nil
	}
}

func (h *handlers) decideInvitation(d planningDomain.Decision) apiHandler {
	return func(w http.ResponseWriter, r *http.Request) error {
		planID, err := uuidParam(r, "id")
		if err != nil {
			return err
		}
		res, err := h.c.DecideInvitation.Handle(r.Context(), planCommands.DecideInvitationCommand{
			PlanID:    planID,
			InviteeID: principalFrom(r.Context()).UserID,
			Decision:  d,
		})
		if err != nil {
			return err
		}
		writeMembership(w, res)
		return nil
	}
}

func (h *handlers) closePlan(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	var req closePlanRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}
	err = h.c.ClosePlan.Handle(r.Context(), planCommands.ClosePlanCommand{
		PlanID:  planID,
		OwnerID: principalFrom(r.Context()).UserID,
		Reason:  req.Reason,
	})
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *handlers) startPlan(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	err = h.c.StartPlan.Handle(r.Context(), planCommands.StartPlanCommand{
		PlanID:  planID,
		ActorID: principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *handlers) completePlan(w http.ResponseWriter, r *http.Request) error {
	planID, err := uuidParam(r, "id")
	if err != nil {
		return err
	}
	err = h.c.CompletePlan.Handle(r.Context(), planCommands.CompletePlanCommand{
		PlanID:  planID,
		ActorID: principalFrom(r.Context()).UserID,
	})
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
