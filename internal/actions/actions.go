package actions

import (
	"context"

	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/servicetoken"
	"github.com/raine/petition-web/internal/session"
)

type Actions struct {
	api    *api.Client
	minter *servicetoken.Minter
}

func New(client *api.Client, minter *servicetoken.Minter) *Actions {
	return &Actions{api: client, minter: minter}
}

// bearer returns a currently valid access token, refreshing it if needed.
func bearer(ctx context.Context, sess *session.Session) (string, *Failure) {
	if sess == nil {
		return "", newFailure(KindUnauthenticated, nil)
	}
	token, ok := sess.ReadAccessToken(ctx)
	if !ok {
		return "", newFailure(KindUnauthenticated, nil)
	}
	return token, nil
}

// optionalBearer is bearer for public operations; anonymous callers get "".
func optionalBearer(ctx context.Context, sess *session.Session) string {
	if sess == nil {
		return ""
	}
	token, _ := sess.ReadAccessToken(ctx)
	return token
}

// authed runs call with a valid access token.
func authed[T any](ctx context.Context, op string, sess *session.Session, call func(token string) (T, error)) Result[T] {
	token, f := bearer(ctx, sess)
	if f != nil {
		return Fail[T](f)
	}
	v, err := call(token)
	if err != nil {
		return failed[T](op, err)
	}
	return OK(v)
}
