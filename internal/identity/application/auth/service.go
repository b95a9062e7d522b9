package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/caravan/internal/identity/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Principal is the authenticated caller behind a token.
type Principal struct {
	UserID    uuid.UUID
	Email     string
	Name      string
	TokenID   string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(user *domain.User) (token string, claims Principal, err error)
	Parse(token string) (Principal, error)
}

// RegisterCommand contains the data needed to create an account.
type RegisterCommand struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Session is a freshly issued token and the user it belongs to.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Service handles registration, login and token checks.
type Service struct {
	users       domain.UserRepository
	issuer      TokenIssuer
	revocations domain.RevocationStore
	outbox      outbox.Repository
	uow         sharedApplication.UnitOfWork
	cost        int
	logger      *slog.Logger
}

// NewService creates a new auth service.
func NewService(
	users domain.UserRepository,
	issuer TokenIssuer,
	revocations domain.RevocationStore,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:       users,
		issuer:      issuer,
		revocations: revocations,
		outbox:      outboxRepo,
		uow:         uow,
		cost:        bcrypt.DefaultCost,
		logger:      logger,
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func (s *Service) WithBcryptCost(cost int) *Service {
	s.cost = cost
	return s
}

// Register creates the account and signs the user in.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Session, error) {
	email, err := domain.NewEmail(cmd.Email)
	if err != nil {
		return nil, err
	}
	first, err := domain.NewName(cmd.FirstName)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(cmd.Password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.NewUser(email, first, cmd.LastName, string(hash))
	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		taken, err := s.users.ExistsByEmail(txCtx, email)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrEmailTaken
		}
		if err := s.users.Save(txCtx, user); err != nil {
			return err
		}

		events := user.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(txCtx, user.ID()))
		msgs, err := outbox.NewMessages(events)
		if err != nil {
			return err
		}
		return s.outbox.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		return nil, err
	}
	user.ClearDomainEvents()

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID())
	return s.issue(user)
}

// Login checks the password and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	addr, err := domain.NewEmail(email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, addr)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash()), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return s.issue(user)
}

// Authenticate verifies the token signature, expiry and revocation.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	p, err := s.issuer.Parse(token)
	if err != nil {
		return Principal{}, domain.ErrInvalidToken
	}
	revoked, err := s.revocations.IsRevoked(ctx, p.TokenID)
	if err != nil {
		return Principal{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Principal{}, domain.ErrTokenRevoked
	}
	return p, nil
}

// Me returns the user behind a principal.
func (s *Service) Me(ctx context.Context, p Principal) (*domain.User, error) {
	return s.users.FindByID(ctx, p.UserID)
}

// Logout revokes the token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, p Principal) error {
	ttl := time.Until(p.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.Revoke(ctx, p.TokenID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", p.UserID)
	return nil
}

func (s *Service) issue(user *domain.User) (*Session, error) {
	token, claims, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}
