package session

import (
	"time"
)

const (
	// AccessTokenTTL matches the backend's minting policy for access tokens.
	AccessTokenTTL = 15 * time.Minute
	// RefreshTokenTTL matches the backend's minting policy for refresh tokens.
	RefreshTokenTTL = 7 * 24 * time.Hour
	// ExpiryBuffer is how long before ExpiresAt an access token is already
	// treated as expired.
	ExpiryBuffer = 2 * time.Minute
)

// Store keys. In cookie mode these are the cookie names.
const (
	KeyAccessToken  = "access-token"
	KeyRefreshToken = "refresh-token"
	KeyExpiresAt    = "token-expires-at"
)

var tokenKeys = []string{KeyAccessToken, KeyRefreshToken, KeyExpiresAt}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the access token expiry. Zero means unknown.
	ExpiresAt time.Time
}

// Expired reports whether the access token must be refreshed before use at now.
// A pair with unknown expiry is never considered expired.
func (p TokenPair) Expired(now time.Time) bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(ExpiryBuffer).Before(p.ExpiresAt)
}
