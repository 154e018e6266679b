package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/raine/petition-web/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	mu     sync.Mutex
	calls  []string
	tokens *api.AuthTokens
	err    error
	// release, when set, blocks every call until closed.
	release chan struct{}
}

func (f *fakeRefresher) RefreshToken(ctx context.Context, refreshToken string) (*api.AuthTokens, error) {
	f.mu.Lock()
	f.calls = append(f.calls, refreshToken)
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	return f.tokens, f.err
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(refresher Refresher, opts ...Option) (*Manager, *testClock) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewManager(refresher, opts...), clock
}

func TestStoreThenRead(t *testing.T) {
	refresher := &fakeRefresher{}
	manager, clock := newTestManager(refresher)
	ctx := context.Background()
	sess := manager.Bind(NewMemoryStore())

	require.NoError(t, sess.Store(ctx, TokenPair{AccessToken: "A1", RefreshToken: "R1"}))

	pair, ok := sess.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "A1", pair.AccessToken)
	assert.Equal(t, "R1", pair.RefreshToken)
	// Missing expiry is defaulted to the access token lifetime
	assert.True(t, clock.Now().Add(AccessTokenTTL).Equal(pair.ExpiresAt))
	assert.Equal(t, 0, refresher.callCount())
}

func TestStore_RejectsIncompletePair(t *testing.T) {
	manager, _ := newTestManager(&fakeRefresher{})
	store := NewMemoryStore()
	sess := manager.Bind(store)

	err := sess.Store(context.Background(), TokenPair{AccessToken: "A1"})
	assert.ErrorIs(t, err, ErrIncompletePair)
	assert.Equal(t, 0, store.Len())
}

type renewingStore struct {
	*MemoryStore
	renewals int
}

func (s *renewingStore) Renew(ctx context.Context) error {
	s.renewals++
	s.MemoryStore = NewMemoryStore()
	return nil
}

func TestSignIn_RenewsStore(t *testing.T) {
	manager, _ := newTestManager(&fakeRefresher{})
	ctx := context.Background()
	store := &renewingStore{MemoryStore: NewMemoryStore()}
	require.NoError(t, store.Set(ctx, "planted", "x", 0))
	sess := manager.Bind(store)

	require.NoError(t, sess.SignIn(ctx, TokenPair{AccessToken: "A1", RefreshToken: "R1"}))

	assert.Equal(t, 1, store.renewals)
	_, ok, _ := store.Get(ctx, "planted")
	assert.False(t, ok)
	pair, ok := sess.Peek(ctx)
	require.True(t, ok)
	assert.Equal(t, "R1", pair.RefreshToken)

	// Refreshing keeps the store's identity
	require.NoError(t, sess.Store(ctx, TokenPair{AccessToken: "A2", RefreshToken: "R2"}))
	assert.Equal(t, 1, store.renewals)
}

func TestRead_Empty(t *testing.T) {
	refresher := &fakeRefresher{}
	manager, _ := newTestManager(refresher)
	sess := manager.Bind(NewMemoryStore())

	_, ok := sess.Read(context.Background())
	assert.False(t, ok)
	assert.False(t, sess.IsAuthenticated(context.Background()))
	assert.Equal(t, 0, refresher.callCount())
}

func TestRead_PartialPairIsCleared(t *testing.T) {
	manager, _ := newTestManager(&fakeRefresher{})
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyRefreshToken, "R1", 0))
	sess := manager.Bind(store)

	_, ok := sess.Read(ctx)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestRead_ExpiredTriggersOneRefresh(t *testing.T) {
	refresher := &fakeRefresher{tokens: &api.AuthTokens{AccessToken: "A2", RefreshToken: "R2"}}
	manager, clock := newTestManager(refresher)
	ctx := context.Background()
	sess := manager.Bind(NewMemoryStore())

	require.NoError(t, sess.Store(ctx, TokenPair{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    clock.Now().Add(-time.Minute),
	}))

	pair, ok := sess.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "A2", pair.AccessToken)
	assert.Equal(t, []string{"R1"}, refresher.calls)
}

func TestRead_MalformedExpiryForcesRefresh(t *testing.T) {
	refresher := &fakeRefresher{tokens: &api.AuthTokens{AccessToken: "A2", RefreshToken: "R2"}}
	manager, _ := newTestManager(refresher)
	ctx := context.Background()
	store := NewMemoryStore()
	sess := manager.Bind(store)

	require.NoError(t, sess.Store(ctx, TokenPair{AccessToken: "A1", RefreshToken: "R1"}))
	require.NoError(t, store.Set(ctx, KeyExpiresAt, "not-a-time", 0))

	token, ok := sess.ReadAccessToken(ctx)
	require.True(t, ok)
	assert.Equal(t, "A2", token)
	assert.Equal(t, 1, refresher.callCount())
}

func TestRead_FailsClosedOnInvalidRefreshResponse(t *testing.T) {
	refresher := &fakeRefresher{tokens: &api.AuthTokens{AccessToken: "A2"}}
	manager, clock := newTestManager(refresher)
	ctx := context.Background()
	store := NewMemoryStore()
	sess := manager.Bind(store)

	require.NoError(t, sess.Store(ctx, TokenPair{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    clock.Now().Add(-time.Minute),
	}))

	_, ok := sess.Read(ctx)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())

	_, ok = sess.Read(ctx)
	assert.False(t, ok)
	assert.Equal(t, 1, refresher.callCount())
}

func TestRefresh_BackendErrorClears(t *testing.T) {
	refresher := &fakeRefresher{err: &api.Error{Method: "POST", URL: "/auth/refreshToken", StatusCode: 401}}
	manager, _ := newTestManager(refresher)
	ctx := context.Background()
	store := NewMemoryStore()
	sess := manager.Bind(store)
	require.NoError(t, sess.Store(ctx, TokenPair{AccessToken: "A1", RefreshToken: "R1"}))

	_, err := sess.Refresh(ctx)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, 0, store.Len())
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	refresher := &fakeRefresher{}
	manager, _ := newTestManager(refresher)
	sess := manager.Bind(NewMemoryStore())

	_, err := sess.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Equal(t, 0, refresher.callCount())
}

func TestClear_Idempotent(t *testing.T) {
	manager, _ := newTestManager(&fakeRefresher{})
	ctx := context.Background()
	store := NewMemoryStore()
	sess := manager.Bind(store)

	assert.NoError(t, sess.Clear(ctx))
	assert.Equal(t, 0, store.Len())

	require.NoError(t, sess.Store(ctx, TokenPair{AccessToken: "A1", RefreshToken: "R1"}))
	assert.NoError(t, sess.Clear(ctx))
	assert.NoError(t, sess.Clear(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestRead_ExpiryBuffer(t *testing.T) {
	tests := []struct {
		name        string
		expiresIn   time.Duration
		wantRefresh bool
	}{
		{name: "inside buffer", expiresIn: 90 * time.Second, wantRefresh: true},
		{name: "exactly at buffer", expiresIn: ExpiryBuffer, wantRefresh: true},
		{name: "outside buffer", expiresIn: 3 * time.Minute, wantRefresh: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := &fakeRefresher{tokens: &api.AuthTokens{AccessToken: "A2", RefreshToken: "R2"}}
			manager, clock := newTestManager(refresher)
			ctx := context.Background()
			sess := manager.Bind(NewMemoryStore())
			require.NoError(t, sess.Store(ctx, TokenPair{
				AccessToken:  "A1",
				RefreshToken: "R1",
				ExpiresAt:    clock.Now().Add(tt.expiresIn),
			}))

			pair, ok := sess.Read(ctx)
			require.True(t, ok)
			if tt.wantRefresh {
				assert.Equal(t, "A2", pair.AccessToken)
				assert.Equal(t, 1, refresher.callCount())
			} else {
				assert.Equal(t, "A1", pair.AccessToken)
				assert.Equal(t, 0, refresher.callCount())
			}
		})
	}
}

func TestRead_RefreshScenario(t *testing.T) {
	refresher := &fakeRefresher{}
	manager, clock := newTestManager(refresher)
	ctx := context.Background()
	sess := manager.Bind(NewMemoryStore())

	require.NoError(t, sess.Store(ctx, TokenPair{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    clock.Now().Add(15 * time.Minute),
	}))

	pair, ok := sess.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "A1", pair.AccessToken)
	assert.Equal(t, "R1", pair.RefreshToken)

	clock.Advance(16 * time.Minute)
	refresher.tokens = &api.AuthTokens{AccessToken: "A2", RefreshToken: "R2"}

	pair, ok = sess.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "A2", pair.AccessToken)
	assert.Equal(t, "R2", pair.RefreshToken)

	pair, ok = sess.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "A2", pair.AccessToken)
	assert.Equal(t, "R2", pair.RefreshToken)
	assert.Equal(t, []string{"R1"}, refresher.calls)
}

func TestRead_ConcurrentRefreshIsSingleFlight(t *testing.T) {
	refresher := &fakeRefresher{
		tokens:  &api.AuthTokens{AccessToken: "A2", RefreshToken: "R2"},
		release: make(chan struct{}),
	}
	manager, clock := newTestManager(refresher)
	ctx := context.Background()

	const readers = 8
	sessions := make([]*Session, readers)
	for i := range sessions {
		sessions[i] = manager.Bind(NewMemoryStore())
		require.NoError(t, sessions[i].Store(ctx, TokenPair{
			AccessToken:  "A1",
			RefreshToken: "R1",
			ExpiresAt:    clock.Now().Add(-time.Minute),
		}))
	}

	results := make([]TokenPair, readers)
	var wg sync.WaitGroup
	for i, sess := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pair, ok := sess.Read(ctx)
			if ok {
				results[i] = pair
			}
		}()
	}

	close(refresher.release)
	wg.Wait()

	assert.Equal(t, 1, refresher.callCount())
	for _, pair := range results {
		assert.Equal(t, "A2", pair.AccessToken)
		assert.Equal(t, "R2", pair.RefreshToken)
	}
}

func TestRefresh_RotationGrace(t *testing.T) {
	refresher := &fakeRefresher{tokens: &api.AuthTokens{AccessToken: "A2", RefreshToken: "R2"}}
	manager, clock := newTestManager(refresher)
	ctx := context.Background()

	first := manager.Bind(NewMemoryStore())
	second := manager.Bind(NewMemoryStore())
	for _, sess := range []*Session{first, second} {
		require.NoError(t, sess.Store(ctx, TokenPair{AccessToken: "A1", RefreshToken: "R1"}))
	}

	_, err := first.Refresh(ctx)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	pair, err := second.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A2", pair.AccessToken)
	assert.Equal(t, 1, refresher.callCount())

	// Past the grace period the stale token goes to the backend again
	clock.Advance(DefaultRotationGrace)
	third := manager.Bind(NewMemoryStore())
	require.NoError(t, third.Store(ctx, TokenPair{AccessToken: "A1", RefreshToken: "R1"}))
	refresher.err = errors.New("refresh token reused")
	_, err = third.Refresh(ctx)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, 2, refresher.callCount())
}

func TestRefresh_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	refresher := &fakeRefresher{tokens: &api.AuthTokens{AccessToken: "A2", RefreshToken: "R2"}}
	manager, _ := newTestManager(refresher, WithMetrics(metrics), WithRotationGrace(0))
	ctx := context.Background()
	sess := manager.Bind(NewMemoryStore())

	require.NoError(t, sess.Store(ctx, TokenPair{AccessToken: "A1", RefreshToken: "R1"}))
	_, err := sess.Refresh(ctx)
	require.NoError(t, err)

	refresher.tokens = &api.AuthTokens{}
	_, err = sess.Refresh(ctx)
	require.Error(t, err)

	_, err = sess.Refresh(ctx)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.refreshes.WithLabelValues(resultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.refreshes.WithLabelValues(resultInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.refreshes.WithLabelValues(resultNoToken)))
}

func TestContext(t *testing.T) {
	manager, _ := newTestManager(&fakeRefresher{})
	sess := manager.Bind(NewMemoryStore())

	assert.Nil(t, FromContext(context.Background()))
	assert.Same(t, sess, FromContext(WithSession(context.Background(), sess)))
}
