package actions

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/servicetoken"
	"github.com/raine/petition-web/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers with canned JSON per "METHOD /path" and records requests.
type fakeBackend struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	requests  []*http.Request
	bodies    []string
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeBackend(t *testing.T, responses map[string]fakeResponse) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{responses: responses}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.requests = append(b.requests, r)
		b.bodies = append(b.bodies, string(body))
		res, ok := b.responses[r.Method+" "+r.URL.Path]
		b.mu.Unlock()

		if !ok {
			res = fakeResponse{status: http.StatusNotFound, body: `{"message":"not found"}`}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.status)
		io.WriteString(w, res.body)
	}))
	t.Cleanup(ts.Close)
	return b, ts
}

func (b *fakeBackend) paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	paths := make([]string, len(b.requests))
	for i, r := range b.requests {
		paths[i] = r.Method + " " + r.URL.Path
	}
	return paths
}

func (b *fakeBackend) authorization(i int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[i].Header.Get("Authorization")
}

func newTestActions(t *testing.T, baseURL string) (*Actions, *session.Manager) {
	t.Helper()
	client := api.NewClient(api.ClientOpts{BaseURL: baseURL, Timeout: 2 * time.Second})
	minter, err := servicetoken.NewMinter("0123456789abcdef0123456789abcdef", 0)
	require.NoError(t, err)
	return New(client, minter), session.NewManager(client)
}

func signedInSession(t *testing.T, manager *session.Manager, expiresAt time.Time) (*session.Session, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	sess := manager.Bind(store)
	require.NoError(t, sess.Store(context.Background(), session.TokenPair{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    expiresAt,
	}))
	return sess, store
}

func TestSignIn_StoresTokens(t *testing.T) {
	_, ts := newFakeBackend(t, map[string]fakeResponse{
		"POST /auth/signIn": {status: 200, body: `{"access_token":"A1","refresh_token":"R1"}`},
	})
	actions, manager := newTestActions(t, ts.URL)
	ctx := context.Background()
	sess := manager.Bind(session.NewMemoryStore())

	res := actions.SignIn(ctx, sess, api.SignInRequest{Email: "jane@example.com", Password: "hunter22"})
	require.True(t, res.Ok())

	pair, ok := sess.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "A1", pair.AccessToken)
	assert.Equal(t, "R1", pair.RefreshToken)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	_, ts := newFakeBackend(t, map[string]fakeResponse{
		"POST /auth/signIn": {status: 401, body: `{"message":"bad password"}`},
	})
	actions, manager := newTestActions(t, ts.URL)
	ctx := context.Background()
	store := session.NewMemoryStore()

	res := actions.SignIn(ctx, manager.Bind(store), api.SignInRequest{Email: "jane@example.com", Password: "nope"})
	require.False(t, res.Ok())
	assert.Equal(t, KindUnauthenticated, res.Failure.Kind)
	assert.Equal(t, invalidCredentials, res.Failure.Message)
	assert.NotContains(t, res.Failure.Message, "bad password")
	assert.Equal(t, 0, store.Len())
}

func TestSignIn_Validation(t *testing.T) {
	backend, ts := newFakeBackend(t, nil)
	actions, manager := newTestActions(t, ts.URL)

	res := actions.SignIn(context.Background(), manager.Bind(session.NewMemoryStore()), api.SignInRequest{Email: "jane"})
	require.False(t, res.Ok())
	assert.Equal(t, KindValidation, res.Failure.Kind)
	assert.Equal(t, "Enter a valid email address.", res.Failure.Fields["Email"])
	assert.Equal(t, "This field is required.", res.Failure.Fields["Password"])
	assert.Empty(t, backend.paths())
}

func TestSignInWithGoogle_SendsServiceToken(t *testing.T) {
	backend, ts := newFakeBackend(t, map[string]fakeResponse{
		"POST /auth/signInWithGoogle": {status: 200, body: `{"access_token":"A1","refresh_token":"R1"}`},
	})
	actions, manager := newTestActions(t, ts.URL)

	res := actions.SignInWithGoogle(context.Background(), manager.Bind(session.NewMemoryStore()), api.GoogleSignInRequest{
		Email:       "jane@example.com",
		Picture:     "https://example.com/jane.png",
		DisplayName: "Jane",
		Lang:        "en",
	})
	require.True(t, res.Ok())

	auth := backend.authorization(0)
	require.True(t, strings.HasPrefix(auth, "Bearer "))
	assert.Len(t, strings.Split(strings.TrimPrefix(auth, "Bearer "), "."), 3)
}

func TestVerifyEmail_TrimsCode(t *testing.T) {
	backend, ts := newFakeBackend(t, map[string]fakeResponse{
		"POST /auth/verifyEmail": {status: 200, body: `{"access_token":"A1","refresh_token":"R1"}`},
	})
	actions, manager := newTestActions(t, ts.URL)

	res := actions.VerifyEmail(context.Background(), manager.Bind(session.NewMemoryStore()), api.VerifyEmailRequest{
		Email: "jane@example.com",
		Code:  " 123456 \n",
	})
	require.True(t, res.Ok())
	assert.JSONEq(t, `{"email":"jane@example.com","code":"123456"}`, backend.bodies[0])
}

func TestSignOut_ClearsLocallyWhenBackendUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	actions, manager := newTestActions(t, url)
	sess, store := signedInSession(t, manager, time.Now().Add(time.Hour))

	actions.SignOut(context.Background(), sess)
	assert.Equal(t, 0, store.Len())
	assert.False(t, sess.IsAuthenticated(context.Background()))
}

func TestSignOut_RevokesOnBackend(t *testing.T) {
	backend, ts := newFakeBackend(t, map[string]fakeResponse{
		"POST /auth/logout": {status: 500, body: `{"message":"boom"}`},
	})
	actions, manager := newTestActions(t, ts.URL)
	sess, store := signedInSession(t, manager, time.Now().Add(time.Hour))

	actions.SignOut(context.Background(), sess)
	assert.Equal(t, []string{"POST /auth/logout"}, backend.paths())
	assert.Equal(t, "Bearer A1", backend.authorization(0))
	assert.Equal(t, 0, store.Len())
}

func TestCreatePetition_RequiresSession(t *testing.T) {
	backend, ts := newFakeBackend(t, nil)
	actions, manager := newTestActions(t, ts.URL)

	res := actions.CreatePetition(context.Background(), manager.Bind(session.NewMemoryStore()), api.CreatePetitionRequest{
		Title:   "Save the park",
		Summary: "Keep the park green",
		Story:   "The city wants to build a parking lot in our park.",
		Goal:    100,
	})
	require.False(t, res.Ok())
	assert.Equal(t, KindUnauthenticated, res.Failure.Kind)
	assert.Empty(t, backend.paths())
}

func TestSignPetition_RefreshesExpiredToken(t *testing.T) {
	backend, ts := newFakeBackend(t, map[string]fakeResponse{
		"POST /auth/refreshToken": {status: 200, body: `{"access_token":"A2","refresh_token":"R2"}`},
		"POST /petitions/p1/sign": {status: 200, body: `{"id":"p1","title":"Save the park","goal":10,"signatureCount":3}`},
	})
	actions, manager := newTestActions(t, ts.URL)
	sess, _ := signedInSession(t, manager, time.Now().Add(time.Minute))

	res := actions.SignPetition(context.Background(), sess, "p1")
	require.True(t, res.Ok())
	assert.Equal(t, 3, res.Value.SignatureCount)

	assert.Equal(t, []string{"POST /auth/refreshToken", "POST /petitions/p1/sign"}, backend.paths())
	assert.Equal(t, "Bearer R1", backend.authorization(0))
	assert.Equal(t, "Bearer A2", backend.authorization(1))
}

func TestSignPetition_Rejected(t *testing.T) {
	_, ts := newFakeBackend(t, map[string]fakeResponse{
		"POST /petitions/p1/sign": {status: 409, body: `{"message":"already signed"}`},
	})
	actions, manager := newTestActions(t, ts.URL)
	sess, _ := signedInSession(t, manager, time.Now().Add(time.Hour))

	res := actions.SignPetition(context.Background(), sess, "p1")
	require.False(t, res.Ok())
	assert.Equal(t, KindRejected, res.Failure.Kind)
}

func TestGetPetition_ToleratesMissingComments(t *testing.T) {
	_, ts := newFakeBackend(t, map[string]fakeResponse{
		"GET /petitions/p1":          {status: 200, body: `{"id":"p1","title":"Save the park"}`},
		"GET /petitions/p1/comments": {status: 503, body: `{}`},
	})
	actions, _ := newTestActions(t, ts.URL)

	res := actions.GetPetition(context.Background(), nil, "p1")
	require.True(t, res.Ok())
	assert.Equal(t, "Save the park", res.Value.Petition.Title)
	assert.Nil(t, res.Value.Comments)
}

func TestGetPetition_NotFound(t *testing.T) {
	_, ts := newFakeBackend(t, nil)
	actions, _ := newTestActions(t, ts.URL)

	res := actions.GetPetition(context.Background(), nil, "nope")
	require.False(t, res.Ok())
	assert.Equal(t, KindNotFound, res.Failure.Kind)
}

func TestListPetitions_Defaults(t *testing.T) {
	backend, ts := newFakeBackend(t, map[string]fakeResponse{
		"GET /petitions": {status: 200, body: `{"items":[],"page":1,"total":0}`},
	})
	actions, _ := newTestActions(t, ts.URL)

	res := actions.ListPetitions(context.Background(), nil, api.ListPetitionsParams{})
	require.True(t, res.Ok())

	backend.mu.Lock()
	query := backend.requests[0].URL.Query()
	backend.mu.Unlock()
	assert.Equal(t, "1", query.Get("page"))
	assert.Equal(t, "12", query.Get("limit"))
}

func TestDonate_BackendUnavailable(t *testing.T) {
	_, ts := newFakeBackend(t, map[string]fakeResponse{
		"POST /donations": {status: 502, body: `{"message":"upstream down"}`},
	})
	actions, manager := newTestActions(t, ts.URL)
	sess, _ := signedInSession(t, manager, time.Now().Add(time.Hour))

	res := actions.Donate(context.Background(), sess, api.DonationRequest{PetitionID: "p1", Amount: 500, Currency: "EUR"})
	require.False(t, res.Ok())
	assert.Equal(t, KindUnavailable, res.Failure.Kind)
	assert.Equal(t, defaultMessages[KindUnavailable], res.Failure.Message)
}

func TestBoost(t *testing.T) {
	_, ts := newFakeBackend(t, map[string]fakeResponse{
		"POST /boosts": {status: 200, body: `{"redirectUrl":"https://pay.example.com/b/1"}`},
	})
	actions, manager := newTestActions(t, ts.URL)
	sess, _ := signedInSession(t, manager, time.Now().Add(time.Hour))

	res := actions.Boost(context.Background(), sess, api.BoostRequest{PetitionID: "p1", PlanID: "week"})
	require.True(t, res.Ok())
	assert.Equal(t, "https://pay.example.com/b/1", res.Value.RedirectURL)
}

func TestSubmitSurveyAnswers_Validation(t *testing.T) {
	actions, manager := newTestActions(t, "http://127.0.0.1:0")
	sess, _ := signedInSession(t, manager, time.Now().Add(time.Hour))

	res := actions.SubmitSurveyAnswers(context.Background(), sess, "s1", api.SubmitAnswersRequest{})
	require.False(t, res.Ok())
	assert.Equal(t, KindValidation, res.Failure.Kind)
	assert.Contains(t, res.Failure.Fields, "Answers")
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "j***@example.com", redactEmail("jane@example.com"))
	assert.Equal(t, "***", redactEmail("@example.com"))
	assert.Equal(t, "***", redactEmail("nope"))
}
