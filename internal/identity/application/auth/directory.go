package auth

import (
	"context"

	"github.com/felixgeelhaar/caravan/internal/identity/domain"
	"github.com/google/uuid"
)

// Directory looks registered users up by email for invitations.
type Directory struct {
	users domain.UserRepository
}

// NewDirectory creates a new Directory.
func NewDirectory(users domain.UserRepository) *Directory {
	return &Directory{users: users}
}

// FindIDByEmail returns domain.ErrUserNotFound for unknown or malformed
// addresses.
func (d *Directory) FindIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	addr, err := domain.NewEmail(email)
	if err != nil {
		return uuid.Nil, domain.ErrUserNotFound
	}
	user, err := d.users.FindByEmail(ctx, addr)
	if err != nil {
		return uuid.Nil, err
	}
	return user.ID(), nil
}
