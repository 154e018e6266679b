// Package keepalive periodically checks the sessions persisted server-side and
// refreshes or discards the ones whose access token the backend no longer accepts.
package keepalive

import (
	"context"
	"errors"
	"time"

	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/session"
	"github.com/raine/petition-web/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultInterval is the time between check cycles.
	DefaultInterval = 5 * time.Minute

	// PruneInterval is how often expired session values and stale drafts are deleted.
	PruneInterval = 24 * time.Hour

	// DraftMaxAge is how long an untouched wizard draft is kept.
	DraftMaxAge = 30 * 24 * time.Hour
)

// Prober makes a cheap authenticated request to see if an access token is accepted.
type Prober interface {
	Me(ctx context.Context, accessToken string) (*api.User, error)
}

type Service struct {
	store    *storage.SQLiteStore
	manager  *session.Manager
	prober   Prober
	interval time.Duration
}

func NewService(store *storage.SQLiteStore, manager *session.Manager, prober Prober, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		store:    store,
		manager:  manager,
		prober:   prober,
		interval: interval,
	}
}

// Run starts the check loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log.Info().Dur("interval", s.interval).Msg("starting session keep-alive")

	s.prune(ctx)
	s.Check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(PruneInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping session keep-alive")
			return nil
		case <-ticker.C:
			s.Check(ctx)
		case <-pruneTicker.C:
			s.prune(ctx)
		}
	}
}

// Result counts what one check cycle did.
type Result struct {
	Checked   int
	Refreshed int
	Cleared   int
}

// Check runs one cycle over all stored sessions.
func (s *Service) Check(ctx context.Context) Result {
	var res Result

	ids, err := s.store.SessionIDs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list sessions")
		return res
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		res.Checked++

		switch s.checkSession(ctx, id) {
		case outcomeRefreshed:
			res.Refreshed++
		case outcomeCleared:
			res.Cleared++
		}
	}

	log.Debug().Int("checked", res.Checked).Int("refreshed", res.Refreshed).Int("cleared", res.Cleared).Msg("keep-alive cycle complete")
	return res
}

type outcome int

const (
	outcomeAlive outcome = iota
	outcomeRefreshed
	outcomeCleared
	outcomeSkipped
)

func (s *Service) checkSession(ctx context.Context, id string) outcome {
	sess := s.manager.Bind(s.store.SessionValues(id))

	pair, ok := sess.Peek(ctx)
	if !ok {
		return outcomeSkipped
	}

	_, err := s.prober.Me(ctx, pair.AccessToken)
	if err == nil {
		return outcomeAlive
	}
	if !errors.Is(err, api.ErrUnauthorized) {
		// The backend being unreachable says nothing about the token.
		log.Warn().Err(err).Msg("session probe failed")
		return outcomeSkipped
	}

	if _, err := sess.Refresh(ctx); err != nil {
		return outcomeCleared
	}
	return outcomeRefreshed
}

func (s *Service) prune(ctx context.Context) {
	values, err := s.store.PruneExpiredSessionValues(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune expired session values")
	}

	drafts, err := s.store.PruneDrafts(DraftMaxAge)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune drafts")
	}

	if values > 0 || drafts > 0 {
		log.Info().Int64("sessionValues", values).Int64("drafts", drafts).Msg("pruned stale data")
	}
}
