package api

import (
	"errors"
	"net/http"

	chatDomain "github.com/felixgeelhaar/caravan/internal/chat/domain"
	expenseDomain "github.com/felixgeelhaar/caravan/internal/expenses/domain"
	"github.com/felixgeelhaar/caravan/internal/files"
	identityDomain "github.com/felixgeelhaar/caravan/internal/identity/domain"
	notificationDomain "github.com/felixgeelhaar/caravan/internal/notifications/domain"
	planningDomain "github.com/felixgeelhaar/caravan/internal/planning/domain"
	pollDomain "github.com/felixgeelhaar/caravan/internal/polls/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
)

// Stable error codes. Clients switch on these, never on messages.
const (
	CodeBadRequest        = "bad_request"
	CodeValidation        = "validation_failed"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeInternal          = "internal_error"
	CodeAlreadyMember     = "already_member"
	CodeHasCurrentPlan    = "has_current_plan"
	CodePlanNotOpen       = "plan_not_open"
	CodePlanFull          = "plan_full"
	CodeInvalidTransition = "invalid_transition"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// APIError carries a status and code through handler returns.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

func badRequest(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: msg}
}

type mapping struct {
	status int
	code   string
}

var errorMappings = []struct {
	err error
	mapping
}{
	// Conflicts with their own codes.
	{planningDomain.ErrAlreadyMember, mapping{http.StatusConflict, CodeAlreadyMember}},
	{planningDomain.ErrHasCurrentPlan, mapping{http.StatusConflict, CodeHasCurrentPlan}},
	{planningDomain.ErrPlanNotOpen, mapping{http.StatusConflict, CodePlanNotOpen}},
	{planningDomain.ErrPlanFull, mapping{http.StatusConflict, CodePlanFull}},
	{planningDomain.ErrInvalidTransition, mapping{http.StatusConflict, CodeInvalidTransition}},
	{identityDomain.ErrEmailTaken, mapping{http.StatusConflict, "email_taken"}},
	{sharedApplication.ErrPlanNotInProgress, mapping{http.StatusConflict, "plan_not_in_progress"}},
	{pollDomain.ErrPollClosed, mapping{http.StatusConflict, "poll_closed"}},
	{pollDomain.ErrAlreadyVoted, mapping{http.StatusConflict, "already_voted"}},

	// Authentication
	{identityDomain.ErrInvalidCredentials, mapping{http.StatusUnauthorized, "invalid_credentials"}},
	{identityDomain.ErrInvalidToken, mapping{http.StatusUnauthorized, CodeUnauthorized}},
	{identityDomain.ErrTokenRevoked, mapping{http.StatusUnauthorized, CodeUnauthorized}},

	// Authorization
	{planningDomain.ErrNotOwner, mapping{http.StatusForbidden, "not_owner"}},
	{planningDomain.ErrNotInvitee, mapping{http.StatusForbidden, "not_invitee"}},
	{sharedApplication.ErrNotMember, mapping{http.StatusForbidden, "not_member"}},
	{sharedApplication.ErrNotActiveMember, mapping{http.StatusForbidden, "not_active_member"}},
	{pollDomain.ErrNotCreator, mapping{http.StatusForbidden, "not_creator"}},
	{expenseDomain.ErrNotPayer, mapping{http.StatusForbidden, "not_payer"}},

	// Not found
	{planningDomain.ErrPlanNotFound, mapping{http.StatusNotFound, "plan_not_found"}},
	{planningDomain.ErrMembershipNotFound, mapping{http.StatusNotFound, "membership_not_found"}},
	{planningDomain.ErrUserNotFound, mapping{http.StatusNotFound, "user_not_found"}},
	{identityDomain.ErrUserNotFound, mapping{http.StatusNotFound, "user_not_found"}},
	{chatDomain.ErrMessageNotFound, mapping{http.StatusNotFound, CodeNotFound}},
	{pollDomain.ErrPollNotFound, mapping{http.StatusNotFound, CodeNotFound}},
	{pollDomain.ErrOptionNotFound, mapping{http.StatusNotFound, CodeNotFound}},
	{expenseDomain.ErrExpenseNotFound, mapping{http.StatusNotFound, CodeNotFound}},
	{expenseDomain.ErrAllocationNotFound, mapping{http.StatusNotFound, CodeNotFound}},
	{notificationDomain.ErrNotificationNotFound, mapping{http.StatusNotFound, CodeNotFound}},
	{files.ErrFileNotFound, mapping{http.StatusNotFound, CodeNotFound}},
}

// validationErrors are domain rule violations on user input.
var validationErrors = []error{
	planningDomain.ErrReasonRequired,
	planningDomain.ErrInvalidCapacity,
	planningDomain.ErrInvalidDates,
	planningDomain.ErrInvalidAgeRange,
	planningDomain.ErrEmptyTitle,
	planningDomain.ErrInvalidStatus,
	identityDomain.ErrInvalidEmail,
	identityDomain.ErrEmptyName,
	identityDomain.ErrNameTooLong,
	identityDomain.ErrWeakPassword,
	chatDomain.ErrEmptyContent,
	chatDomain.ErrContentTooLong,
	chatDomain.ErrInvalidMessageType,
	pollDomain.ErrEmptyQuestion,
	pollDomain.ErrQuestionTooLong,
	pollDomain.ErrTooFewOptions,
	pollDomain.ErrTooManyOptions,
	pollDomain.ErrInvalidOption,
	expenseDomain.ErrEmptyDescription,
	expenseDomain.ErrInvalidAmount,
	expenseDomain.ErrInvalidCurrency,
	expenseDomain.ErrNoParticipants,
	expenseDomain.ErrDuplicateParticipant,
	expenseDomain.ErrAllocationMismatch,
	expenseDomain.ErrParticipantNotMember,
	files.ErrFileTooLarge,
	files.ErrInvalidPath,
}

// toAPIError classifies err. Unknown errors become 500s with a generic
// message so internals do not leak.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return &APIError{Status: m.status, Code: m.code, Message: m.err.Error()}
		}
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return &APIError{Status: http.StatusUnprocessableEntity, Code: CodeValidation, Message: v.Error()}
		}
	}
	return &APIError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error"}
}
