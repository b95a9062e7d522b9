package api

import (
	"net/http"
	"time"

	"github.com/felixgeelhaar/caravan/internal/identity/application/auth"
	identityDomain "github.com/felixgeelhaar/caravan/internal/identity/domain"
	"github.com/google/uuid"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserDTO is the public view of an account.
type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Languages   []string  `json:"languages,omitempty"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserDTO   `json:"user"`
}

func (h *handlers) toUserDTO(u *identityDomain.User) UserDTO {
	return UserDTO{
		ID:          u.ID(),
		Email:       u.Email().String(),
		FirstName:   u.FirstName(),
		LastName:    u.LastName(),
		DisplayName: u.DisplayName(),
		AvatarURL:   h.c.Files.Accessor().URL(u.AvatarPath()),
		Languages:   u.Languages(),
	}
}

func (h *handlers) sessionResponse(s *auth.Session) SessionResponse {
	return SessionResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, User: h.toUserDTO(s.User)}
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}
	session, err := h.c.Auth.Register(r.Context(), auth.RegisterCommand{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, h.sessionResponse(session))
	return nil
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		return err
	}
	session, err := h.c.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(session))
	return nil
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) error {
	user, err := h.c.Auth.Me(r.Context(), principalFrom(r.Context()))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, h.toUserDTO(user))
	return nil
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) error {
	if err := h.c.Auth.Logout(r.Context(), principalFrom(r.Context())); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
