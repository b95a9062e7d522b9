package domain

import (
	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	AggregateType = "User"

	RoutingKeyUserRegistered = "identity.user.registered"
)

// UserRegistered is emitted when a new account is created.
type UserRegistered struct {
	sharedDomain.BaseEvent
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewUserRegistered creates a UserRegistered event.
func NewUserRegistered(userID uuid.UUID, email, name string) *UserRegistered {
	return &UserRegistered{
		BaseEvent: sharedDomain.NewBaseEvent(userID, AggregateType, RoutingKeyUserRegistered),
		Email:     email,
		Name:      name,
	}
}
