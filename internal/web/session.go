package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/raine/petition-web/internal/session"
	"github.com/raine/petition-web/internal/storage"
)

const (
	BackendCookie = "cookie"
	BackendSQLite = "sqlite"

	sidCookie     = "sid"
	draftCookie   = "draft-id"
	draftLifetime = 30 * 24 * time.Hour
)

// bindSession attaches the request's token session to its context.
func (s *Server) bindSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var store session.Store
		if s.opts.SessionBackend == BackendSQLite {
			store = &sidStore{w: w, r: r, db: s.store, secure: s.opts.Secure}
		} else {
			store = session.NewCookieStore(w, r, s.sealer, s.opts.Secure)
		}

		sess := s.sessions.Bind(store)
		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}

// sidStore keeps token values server-side, keyed by an opaque sid cookie.
// The cookie is only issued once something is stored. A sid with no stored
// values is treated as absent.
type sidStore struct {
	w      http.ResponseWriter
	r      *http.Request
	db     *storage.SQLiteStore
	secure bool
	values *storage.SessionValues
}

func (s *sidStore) current(ctx context.Context) (*storage.SessionValues, error) {
	if s.values != nil {
		return s.values, nil
	}

	c, err := s.r.Cookie(sidCookie)
	if err != nil || uuid.Validate(c.Value) != nil {
		return nil, nil
	}
	known, err := s.db.HasSession(ctx, c.Value)
	if err != nil || !known {
		return nil, err
	}
	s.values = s.db.SessionValues(c.Value)
	return s.values, nil
}

func (s *sidStore) issue() *storage.SessionValues {
	id := uuid.NewString()
	http.SetCookie(s.w, &http.Cookie{
		Name:     sidCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(session.RefreshTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.values = s.db.SessionValues(id)
	return s.values
}

func (s *sidStore) Get(ctx context.Context, key string) (string, bool, error) {
	values, err := s.current(ctx)
	if values == nil {
		return "", false, err
	}
	return values.Get(ctx, key)
}

func (s *sidStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	values, err := s.current(ctx)
	if err != nil {
		return err
	}
	if values == nil {
		values = s.issue()
	}
	return values.Set(ctx, key, value, ttl)
}

func (s *sidStore) Delete(ctx context.Context, key string) error {
	values, err := s.current(ctx)
	if values == nil {
		return err
	}
	return values.Delete(ctx, key)
}

// Renew drops the values under the presented sid and issues a new one.
func (s *sidStore) Renew(ctx context.Context) error {
	old, err := s.current(ctx)
	if err != nil {
		return err
	}
	if old != nil {
		if err := s.db.DeleteSession(ctx, old.SessionID()); err != nil {
			return err
		}
	}
	s.issue()
	return nil
}

// draftID returns the browser's wizard draft id, issuing one if needed.
func (s *Server) draftID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(draftCookie); err == nil && uuid.Validate(c.Value) == nil {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     draftCookie,
		Value:    id,
		Path:     "/petitions/new",
		MaxAge:   int(draftLifetime / time.Second),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) forgetDraft(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     draftCookie,
		Path:     "/petitions/new",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
