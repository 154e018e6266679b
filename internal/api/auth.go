package api

import (
	"context"
)

// AuthTokens is returned by every sign-in and refresh endpoint.
// The backend rotates both tokens on refresh, so both are required.
type AuthTokens struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleSignInRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Picture     string `json:"picture" validate:"omitempty,url"`
	DisplayName string `json:"displayName" validate:"required"`
	Lang        string `json:"lang" validate:"required,bcp47_language_tag"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,alphanum,min=4,max=12"`
}

type User struct {
	ID          string `json:"id" validate:"required"`
	Email       string `json:"email" validate:"required"`
	DisplayName string `json:"displayName"`
}

func (c *Client) SignIn(ctx context.Context, in SignInRequest) (*AuthTokens, error) {
	return c.postForTokens(ctx, "/auth/signIn", "", in)
}

// SignInWithGoogle exchanges a verified Google profile for tokens.
// serviceToken is a short-lived token minted by this application.
func (c *Client) SignInWithGoogle(ctx context.Context, serviceToken string, in GoogleSignInRequest) (*AuthTokens, error) {
	return c.postForTokens(ctx, "/auth/signInWithGoogle", serviceToken, in)
}

// VerifyEmail confirms an emailed code and signs the user in.
func (c *Client) VerifyEmail(ctx context.Context, serviceToken string, in VerifyEmailRequest) (*AuthTokens, error) {
	return c.postForTokens(ctx, "/auth/verifyEmail", serviceToken, in)
}

// RefreshToken presents refreshToken as bearer and returns the rotated pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	result := &AuthTokens{}

	_, err := handleError(c.req(ctx, refreshToken, result).
		Post("/auth/refreshToken"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}

// Logout revokes the session on the backend.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	_, err := handleError(c.req(ctx, accessToken, nil).
		Post("/auth/logout"))
	return err
}

// Me returns the signed-in user. Useful as a cheap authenticated probe.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	result := &User{}

	_, err := handleError(c.req(ctx, accessToken, result).
		Get("/users/me"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) postForTokens(ctx context.Context, path, bearer string, body any) (*AuthTokens, error) {
	if err := ValidateRequest(body); err != nil {
		return nil, err
	}

	result := &AuthTokens{}

	_, err := handleError(c.req(ctx, bearer, result).
		SetBody(body).
		Post(path))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}
