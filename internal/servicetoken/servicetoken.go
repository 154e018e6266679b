// Package servicetoken mints the short-lived tokens this application presents to
// the backend on endpoints that are called on behalf of a user who is not yet
// signed in (Google sign-in, email verification).
package servicetoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTTL = time.Minute
	Issuer     = "petition-web"
	Audience   = "petition-api"
)

// Purposes the backend accepts a service token for.
const (
	PurposeGoogleSignIn = "google_sign_in"
	PurposeVerifyEmail  = "verify_email"
)

var ErrSecretTooShort = errors.New("service token secret must be at least 32 bytes")

type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

type Minter struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewMinter(secret string, ttl time.Duration) (*Minter, error) {
	if len(secret) < 32 {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Minter{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Mint signs an HS256 token for subject (the user's email) and purpose.
func (m *Minter) Mint(subject, purpose string) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return signed, nil
}
