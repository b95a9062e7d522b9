package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/caravan/internal/identity/application/auth"
	"github.com/felixgeelhaar/caravan/internal/identity/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuerName = "caravan"

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 tokens carrying the user ID as subject and a
// random jti used for revocation.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer creates an issuer. The secret must not be empty.
func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

var _ auth.TokenIssuer = (*JWTIssuer)(nil)

func (i *JWTIssuer) Issue(user *domain.User) (string, auth.Principal, error) {
	now := i.now().UTC()
	p := auth.Principal{
		UserID:    user.ID(),
		Email:     user.Email().String(),
		Name:      user.DisplayName(),
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(i.ttl).Truncate(time.Second),
	}
	c := claims{
		Email: p.Email,
		Name:  p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.TokenID,
			Subject:   p.UserID.String(),
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", auth.Principal{}, err
	}
	return signed, p, nil
}

func (i *JWTIssuer) Parse(raw string) (auth.Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return auth.Principal{}, err
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("token subject: %w", err)
	}
	if c.ID == "" {
		return auth.Principal{}, errors.New("token has no id")
	}
	return auth.Principal{
		UserID:    userID,
		Email:     c.Email,
		Name:      c.Name,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
