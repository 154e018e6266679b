package actions

import (
	"context"
	"strings"

	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/servicetoken"
	"github.com/raine/petition-web/internal/session"
	"github.com/rs/zerolog/log"
)

const invalidCredentials = "Invalid email or password."

func (a *Actions) SignIn(ctx context.Context, sess *session.Session, in api.SignInRequest) Result[struct{}] {
	if f := validateInput(in); f != nil {
		return Fail[struct{}](f)
	}

	tokens, err := a.api.SignIn(ctx, in)
	if err != nil {
		res := failed[struct{}]("SignIn", err)
		if k := res.Failure.Kind; k == KindUnauthenticated || k == KindRejected {
			res.Failure.Message = invalidCredentials
		}
		return res
	}

	log.Info().Str("email", redactEmail(in.Email)).Msg("User signed in")
	return a.storeTokens(ctx, sess, tokens)
}

func (a *Actions) SignInWithGoogle(ctx context.Context, sess *session.Session, in api.GoogleSignInRequest) Result[struct{}] {
	if f := validateInput(in); f != nil {
		return Fail[struct{}](f)
	}

	serviceToken, err := a.minter.Mint(in.Email, servicetoken.PurposeGoogleSignIn)
	if err != nil {
		return failed[struct{}]("SignInWithGoogle", err)
	}

	tokens, err := a.api.SignInWithGoogle(ctx, serviceToken, in)
	if err != nil {
		return failed[struct{}]("SignInWithGoogle", err)
	}

	log.Info().Str("email", redactEmail(in.Email)).Msg("User signed in with Google")
	return a.storeTokens(ctx, sess, tokens)
}

func (a *Actions) VerifyEmail(ctx context.Context, sess *session.Session, in api.VerifyEmailRequest) Result[struct{}] {
	in.Code = strings.TrimSpace(in.Code)
	if f := validateInput(in); f != nil {
		return Fail[struct{}](f)
	}

	serviceToken, err := a.minter.Mint(in.Email, servicetoken.PurposeVerifyEmail)
	if err != nil {
		return failed[struct{}]("VerifyEmail", err)
	}

	tokens, err := a.api.VerifyEmail(ctx, serviceToken, in)
	if err != nil {
		res := failed[struct{}]("VerifyEmail", err)
		if res.Failure.Kind == KindRejected || res.Failure.Kind == KindUnauthenticated {
			res.Failure.Message = "The code is invalid or has expired."
		}
		return res
	}

	log.Info().Str("email", redactEmail(in.Email)).Msg("User verified email")
	return a.storeTokens(ctx, sess, tokens)
}

// SignOut revokes the session on the backend and always clears it locally,
// even when the backend call fails.
func (a *Actions) SignOut(ctx context.Context, sess *session.Session) {
	if sess == nil {
		return
	}
	defer sess.Clear(ctx)

	pair, ok := sess.Peek(ctx)
	if !ok {
		return
	}
	if err := a.api.Logout(ctx, pair.AccessToken); err != nil {
		log.Warn().Err(err).Msg("Failed to log out on backend")
	}
}

func (a *Actions) CurrentUser(ctx context.Context, sess *session.Session) Result[*api.User] {
	return authed(ctx, "CurrentUser", sess, func(token string) (*api.User, error) {
		return a.api.Me(ctx, token)
	})
}

func (a *Actions) storeTokens(ctx context.Context, sess *session.Session, tokens *api.AuthTokens) Result[struct{}] {
	err := sess.SignIn(ctx, session.TokenPair{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to store tokens")
		return Fail[struct{}](newFailure(KindUnavailable, err))
	}
	return OK(struct{}{})
}

// redactEmail keeps the first character of the local part and the domain.
func redactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
