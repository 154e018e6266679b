// Package session owns the access/refresh token pair of a signed-in user:
// storing it, reading it back, refreshing it shortly before it expires and
// discarding it when it can no longer be trusted.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raine/petition-web/internal/api"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const DefaultRotationGrace = 30 * time.Second

var (
	// ErrRefreshFailed is returned by Refresh. The stored tokens have been cleared.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrNoRefreshToken means there was nothing to refresh with.
	ErrNoRefreshToken = errors.New("no refresh token stored")
	ErrIncompletePair = errors.New("token pair must have both tokens")
)

// Refresher exchanges a refresh token for a rotated token pair.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*api.AuthTokens, error)
}

type rotation struct {
	tokens *api.AuthTokens
	at     time.Time
}

// Manager holds what is shared by all sessions: the refresh client, the clock
// and the in-flight refresh calls. Bind it to a Store to get a Session.
type Manager struct {
	refresher Refresher
	now       func() time.Time
	metrics   *Metrics

	group singleflight.Group

	grace    time.Duration
	recentMu sync.Mutex
	recent   map[string]rotation
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithRotationGrace sets how long the result of a refresh is handed out again
// to callers that still present the refresh token it replaced. Zero disables it.
func WithRotationGrace(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

func NewManager(refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		refresher: refresher,
		now:       time.Now,
		grace:     DefaultRotationGrace,
		recent:    map[string]rotation{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bind returns the session whose tokens live in store.
func (m *Manager) Bind(store Store) *Session {
	return &Session{manager: m, store: store}
}

// rotate performs the refresh call for refreshToken. Concurrent callers with the
// same refresh token share one call. The call is detached from ctx cancellation
// so one caller going away doesn't fail the others.
func (m *Manager) rotate(ctx context.Context, refreshToken string) (*api.AuthTokens, bool, error) {
	key := fingerprint(refreshToken)

	if tokens, ok := m.recentRotation(key); ok {
		return tokens, true, nil
	}

	v, err, shared := m.group.Do(key, func() (any, error) {
		// A flight for the same token may have finished since the check above.
		if tokens, ok := m.recentRotation(key); ok {
			return tokens, nil
		}
		tokens, err := m.refresher.RefreshToken(context.WithoutCancel(ctx), refreshToken)
		if err != nil {
			return nil, err
		}
		if tokens == nil || tokens.AccessToken == "" || tokens.RefreshToken == "" {
			return nil, fmt.Errorf("%w: refresh response is missing a token", api.ErrInvalidResponse)
		}
		m.rememberRotation(key, tokens)
		return tokens, nil
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*api.AuthTokens), shared, nil
}

func (m *Manager) recentRotation(key string) (*api.AuthTokens, bool) {
	if m.grace <= 0 {
		return nil, false
	}

	m.recentMu.Lock()
	defer m.recentMu.Unlock()

	r, ok := m.recent[key]
	if !ok {
		return nil, false
	}
	if m.now().Sub(r.at) > m.grace {
		delete(m.recent, key)
		return nil, false
	}
	return r.tokens, true
}

func (m *Manager) rememberRotation(key string, tokens *api.AuthTokens) {
	if m.grace <= 0 {
		return
	}

	m.recentMu.Lock()
	defer m.recentMu.Unlock()

	now := m.now()
	for k, r := range m.recent {
		if now.Sub(r.at) > m.grace {
			delete(m.recent, k)
		}
	}
	m.recent[key] = rotation{tokens: tokens, at: now}
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Session is the Manager bound to one user's Store.
type Session struct {
	manager *Manager
	store   Store
}

// Store persists pair, replacing any previous one. A zero ExpiresAt is
// replaced with now + AccessTokenTTL.
func (s *Session) Store(ctx context.Context, pair TokenPair) error {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return ErrIncompletePair
	}
	if pair.ExpiresAt.IsZero() {
		pair.ExpiresAt = s.manager.now().Add(AccessTokenTTL)
	}

	values := map[string]string{
		KeyAccessToken:  pair.AccessToken,
		KeyRefreshToken: pair.RefreshToken,
		KeyExpiresAt:    pair.ExpiresAt.UTC().Format(time.RFC3339),
	}
	for _, key := range tokenKeys {
		// All keys live as long as the refresh token so that the pair can't
		// become partial by the access token entry expiring on its own.
		if err := s.store.Set(ctx, key, values[key], RefreshTokenTTL); err != nil {
			s.Clear(ctx)
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
	}
	return nil
}

// SignIn stores the pair of a fresh authentication. Stores implementing
// Renewer get a new identity first, so no earlier session id carries over.
func (s *Session) SignIn(ctx context.Context, pair TokenPair) error {
	if r, ok := s.store.(Renewer); ok {
		if err := r.Renew(ctx); err != nil {
			return fmt.Errorf("failed to renew session: %w", err)
		}
	}
	return s.Store(ctx, pair)
}

// Peek returns the stored pair without refreshing it.
// Storage holding only one of the tokens is cleared and reported as absent.
func (s *Session) Peek(ctx context.Context) (TokenPair, bool) {
	access, hasAccess, err := s.store.Get(ctx, KeyAccessToken)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read access token, clearing session")
		s.Clear(ctx)
		return TokenPair{}, false
	}
	refresh, hasRefresh, err := s.store.Get(ctx, KeyRefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read refresh token, clearing session")
		s.Clear(ctx)
		return TokenPair{}, false
	}

	if !hasAccess && !hasRefresh {
		return TokenPair{}, false
	}
	if !hasAccess || !hasRefresh {
		log.Warn().Bool("hasAccess", hasAccess).Bool("hasRefresh", hasRefresh).Msg("Found partial token pair, clearing session")
		s.Clear(ctx)
		return TokenPair{}, false
	}

	pair := TokenPair{AccessToken: access, RefreshToken: refresh}

	raw, ok, err := s.store.Get(ctx, KeyExpiresAt)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Failed to read token expiry, treating token as expired")
		pair.ExpiresAt = time.Unix(0, 0)
	case ok:
		expiresAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			log.Warn().Err(err).Msg("Malformed token expiry, treating token as expired")
			expiresAt = time.Unix(0, 0)
		}
		pair.ExpiresAt = expiresAt
	}

	return pair, true
}

// Read returns the stored pair, refreshing it first if the access token is
// about to expire. At most one refresh is attempted; if it fails the session is
// cleared and absence is reported.
func (s *Session) Read(ctx context.Context) (TokenPair, bool) {
	pair, ok := s.Peek(ctx)
	if !ok {
		return TokenPair{}, false
	}
	if !pair.Expired(s.manager.now()) {
		return pair, true
	}

	refreshed, err := s.Refresh(ctx)
	if err != nil {
		return TokenPair{}, false
	}
	return refreshed, true
}

func (s *Session) ReadAccessToken(ctx context.Context) (string, bool) {
	pair, ok := s.Read(ctx)
	if !ok {
		return "", false
	}
	return pair.AccessToken, true
}

// Refresh exchanges the stored refresh token for a new pair and persists it.
// On any failure the session is cleared and the returned error wraps
// ErrRefreshFailed.
func (s *Session) Refresh(ctx context.Context) (TokenPair, error) {
	m := s.manager

	refreshToken, ok, err := s.store.Get(ctx, KeyRefreshToken)
	if err != nil || !ok {
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read refresh token")
		}
		m.metrics.observeRefresh(resultNoToken)
		s.Clear(ctx)
		return TokenPair{}, fmt.Errorf("%w: %w", ErrRefreshFailed, ErrNoRefreshToken)
	}

	tokens, shared, err := m.rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, api.ErrInvalidResponse) {
			m.metrics.observeRefresh(resultInvalid)
		} else {
			m.metrics.observeRefresh(resultFailure)
		}
		log.Warn().Err(err).Msg("Failed to refresh tokens, clearing session")
		s.Clear(ctx)
		return TokenPair{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	pair := TokenPair{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    m.now().Add(AccessTokenTTL),
	}
	if err := s.Store(ctx, pair); err != nil {
		m.metrics.observeRefresh(resultFailure)
		log.Warn().Err(err).Msg("Failed to persist refreshed tokens, clearing session")
		return TokenPair{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if shared {
		m.metrics.observeRefresh(resultShared)
	} else {
		m.metrics.observeRefresh(resultSuccess)
	}
	log.Debug().Bool("shared", shared).Msg("Refreshed tokens")
	return pair, nil
}

// Clear removes all token material. Clearing an empty session is a no-op.
func (s *Session) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range tokenKeys {
		if err := s.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("Failed to clear session")
		return err
	}
	return nil
}

// IsAuthenticated reports whether Read would return a pair.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Read(ctx)
	return ok
}
