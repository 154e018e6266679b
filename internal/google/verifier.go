// Package google verifies Google Identity Services ID tokens.
package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://oauth2.googleapis.com"

var ErrInvalidToken = errors.New("invalid google id token")

// Profile is the verified identity carried by an ID token.
type Profile struct {
	Email   string
	Name    string
	Picture string
	Locale  string
}

type tokenInfo struct {
	Iss           string `json:"iss"`
	Aud           string `json:"aud"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

type VerifierOpts struct {
	ClientID string
	BaseURL  string
}

type Verifier struct {
	httpClient *resty.Client
	clientID   string
}

func NewVerifier(opts VerifierOpts) *Verifier {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Verifier{
		clientID: opts.ClientID,
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

func (v *Verifier) ClientID() string {
	return v.clientID
}

// Verify checks idToken with Google and returns the profile it was issued for.
// The token must be issued for this client and carry a verified email.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*Profile, error) {
	if idToken == "" {
		return nil, ErrInvalidToken
	}

	info := &tokenInfo{}
	res, err := v.httpClient.R().
		SetContext(ctx).
		SetQueryParam("id_token", idToken).
		SetResult(info).
		Get("/tokeninfo")
	if err != nil {
		return nil, fmt.Errorf("failed to verify google id token: %w", err)
	}
	if res.StatusCode() == 400 {
		return nil, ErrInvalidToken
	}
	if res.IsError() {
		return nil, fmt.Errorf("request failed: %s %s (status: %d)", res.Request.Method, res.Request.URL, res.StatusCode())
	}

	switch {
	case info.Aud != v.clientID:
		return nil, fmt.Errorf("%w: wrong audience", ErrInvalidToken)
	case info.Iss != "accounts.google.com" && info.Iss != "https://accounts.google.com":
		return nil, fmt.Errorf("%w: wrong issuer", ErrInvalidToken)
	case info.Email == "" || info.EmailVerified != "true":
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidToken)
	}

	return &Profile{
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
		Locale:  info.Locale,
	}, nil
}
