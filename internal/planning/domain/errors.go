package domain

import "errors"

var (
	ErrPlanNotFound       = errors.New("plan not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrUserNotFound       = errors.New("user not found")

	// ErrInvalidTransition is returned for any status change outside the
	// transition table, including a second cancel of the same application.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("invalid status")

	ErrAlreadyMember  = errors.New("user is already a member of this plan")
	ErrHasCurrentPlan = errors.New("user already has a current plan")
	ErrPlanNotOpen    = errors.New("plan is not open for this operation")
	ErrPlanFull       = errors.New("plan is full")

	ErrNotOwner   = errors.New("only the plan owner may do this")
	ErrNotInvitee = errors.New("only the invited user may do this")

	ErrReasonRequired  = errors.New("a reason is required")
	ErrInvalidCapacity = errors.New("capacity must be at least 2")
	ErrInvalidDates    = errors.New("end date must not be before start date")
	ErrInvalidAgeRange = errors.New("invalid age range")
	ErrEmptyTitle      = errors.New("title cannot be empty")
)
