// Package web is the HTML front end: routing, middleware, page handlers and templates.
package web

import (
	"embed"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raine/petition-web/internal/actions"
	"github.com/raine/petition-web/internal/drafts"
	"github.com/raine/petition-web/internal/google"
	"github.com/raine/petition-web/internal/session"
	"github.com/raine/petition-web/internal/storage"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type Options struct {
	// Secure marks cookies Secure. Set in production.
	Secure         bool
	SessionBackend string
	RequestTimeout time.Duration
	Registerer     prometheus.Registerer
	Gatherer       prometheus.Gatherer
}

// Deps are the collaborators the handlers call into. Google is optional.
type Deps struct {
	Actions  *actions.Actions
	Sessions *session.Manager
	Drafts   *drafts.Service
	Store    *storage.SQLiteStore
	Sealer   *storage.Sealer
	Google   *google.Verifier
}

type Server struct {
	actions  *actions.Actions
	sessions *session.Manager
	drafts   *drafts.Service
	store    *storage.SQLiteStore
	sealer   *storage.Sealer
	google   *google.Verifier
	opts     Options
	pages    *pages
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewServer(deps Deps, opts Options) (*Server, error) {
	if opts.SessionBackend == "" {
		opts.SessionBackend = BackendCookie
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}

	pages, err := loadPages(templateFS)
	if err != nil {
		return nil, err
	}

	factory := promauto.With(opts.Registerer)
	return &Server{
		actions:  deps.Actions,
		sessions: deps.Sessions,
		drafts:   deps.Drafts,
		store:    deps.Store,
		sealer:   deps.Sealer,
		google:   deps.Google,
		opts:     opts,
		pages:    pages,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petition_web",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "petition_web",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}, nil
}

// Router builds the HTTP handler with all middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(
		hlog.NewHandler(log.Logger),
		hlog.RequestIDHandler("reqId", "X-Request-Id"),
		hlog.RemoteAddrHandler("ip"),
		hlog.AccessHandler(s.logRequest),
		middleware.Recoverer,
		middleware.CleanPath,
	)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	if s.opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle("/static/*", http.FileServerFS(staticFS))

	r.Group(func(r chi.Router) {
		if s.opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
		}
		r.Use(s.bindSession)

		r.Get("/", s.handleListPetitions)
		r.Get("/petitions/{id}", s.handleGetPetition)
		r.Post("/petitions/{id}/sign", s.handleSignPetition)
		r.Post("/petitions/{id}/comments", s.handleAddComment)
		r.Post("/petitions/{id}/donate", s.handleDonate)
		r.Post("/petitions/{id}/boost", s.handleBoost)

		r.Route("/petitions/new", func(r chi.Router) {
			r.Use(s.requireSignIn)
			r.Get("/", s.handleWizard)
			r.Post("/", s.handleWizardSubmit)
			r.Get("/image", s.handleWizardImage)
			r.Post("/discard", s.handleWizardDiscard)
		})

		r.Get("/signin", s.handleSignInForm)
		r.Post("/signin", s.handleSignIn)
		r.Post("/signin/google", s.handleGoogleSignIn)
		r.Get("/verify", s.handleVerifyForm)
		r.Post("/verify", s.handleVerify)
		r.Post("/signout", s.handleSignOut)

		r.Get("/surveys", s.handleListSurveys)
		r.Get("/surveys/{id}", s.handleGetSurvey)
		r.Post("/surveys/{id}", s.handleSubmitSurvey)

		r.Get("/session/check", s.handleSessionCheck)
		r.Post("/session/refresh", s.handleSessionRefresh)
	})

	return r
}

func (s *Server) logRequest(r *http.Request, status, size int, duration time.Duration) {
	route := "unmatched"
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		route = rctx.RoutePattern()
	}

	s.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	s.duration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

// requireSignIn redirects anonymous visitors to the sign-in page.
func (s *Server) requireSignIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil || !sess.IsAuthenticated(r.Context()) {
			s.redirectToSignIn(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
