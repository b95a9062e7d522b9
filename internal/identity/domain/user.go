package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
	"github.com/google/uuid"
)

// User represents a registered traveller.
type User struct {
	sharedDomain.BaseAggregateRoot
	email        Email
	firstName    Name
	lastName     string
	passwordHash string
	avatarPath   string
	gender       string
	birthDate    *time.Time
	languages    []string
}

// NewUser creates a user from an already hashed password.
func NewUser(email Email, firstName Name, lastName, passwordHash string) *User {
	u := &User{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		email:             email,
		firstName:         firstName,
		lastName:          strings.TrimSpace(lastName),
		passwordHash:      passwordHash,
	}
	u.Record(NewUserRegistered(u.ID(), email.String(), u.DisplayName()))
	return u
}

// UserState is the persisted form of a user.
type UserState struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	AvatarPath   string
	Gender       string
	BirthDate    *time.Time
	Languages    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RehydrateUser rebuilds a stored user without validation or events.
func RehydrateUser(s UserState) *User {
	return &User{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt)),
		email:        Email{value: s.Email},
		firstName:    Name{value: s.FirstName},
		lastName:     s.LastName,
		passwordHash: s.PasswordHash,
		avatarPath:   s.AvatarPath,
		gender:       s.Gender,
		birthDate:    s.BirthDate,
		languages:    s.Languages,
	}
}

// Getters
func (u *User) Email() Email          { return u.email }
func (u *User) FirstName() string     { return u.firstName.String() }
func (u *User) LastName() string      { return u.lastName }
func (u *User) PasswordHash() string  { return u.passwordHash }
func (u *User) AvatarPath() string    { return u.avatarPath }
func (u *User) Gender() string        { return u.gender }
func (u *User) BirthDate() *time.Time { return u.birthDate }
func (u *User) Languages() []string   { return u.languages }

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.firstName.String() + " " + u.lastName)
}

// SetProfile updates the optional profile fields used by plan filters.
func (u *User) SetProfile(avatarPath, gender string, birthDate *time.Time, languages []string) {
	u.avatarPath = avatarPath
	u.gender = gender
	u.birthDate = birthDate
	u.languages = languages
	u.Touch()
}

// State snapshots the user for persistence.
func (u *User) State() UserState {
	return UserState{
		ID:           u.ID(),
		Email:        u.email.String(),
		FirstName:    u.firstName.String(),
		LastName:     u.lastName,
		PasswordHash: u.passwordHash,
		AvatarPath:   u.avatarPath,
		Gender:       u.gender,
		BirthDate:    u.birthDate,
		Languages:    u.languages,
		CreatedAt:    u.CreatedAt(),
		UpdatedAt:    u.UpdatedAt(),
	}
}
