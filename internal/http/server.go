// Package http exposes the dashboard as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"precatorios/internal/auth"
	applog "precatorios/internal/log"
	"precatorios/internal/middleware/ratelimit"
	"precatorios/internal/middleware/security"
	"precatorios/internal/middleware/trace"
	"precatorios/internal/refresh"
	"precatorios/internal/snapshot"
)

const (
	defaultRefreshPerMinute = 6
	signInPerMinute         = 10
	requestTimeout          = 3 * time.Minute
)

// Datasets is the live dataset and its manual refresh. *refresh.Service
// satisfies it.
type Datasets interface {
	Current() *refresh.Dataset
	Refresh(ctx context.Context, trigger string) (*refresh.Dataset, error)
}

// Pinger checks a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API is built on.
type Deps struct {
	Auth      *auth.Service
	Datasets  Datasets
	Snapshots *snapshot.Service
	Logger    *applog.Logger
	// DB, when set, must answer for /readyz to pass.
	DB Pinger

	CORSOrigins      []string
	TrustedProxies   []string
	RefreshPerMinute int
	// Now is the clock used for snapshot months. Defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server

	auth      *auth.Service
	datasets  Datasets
	snapshots *snapshot.Service
	logger    *applog.Logger
	db        Pinger
	now       func() time.Time

	detector       *security.Detector
	tracer         *trace.Middleware
	refreshLimiter *ratelimit.Limiter
	signInLimiter  *ratelimit.Limiter
	shutdownOnce   sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Shutdown stops the limiters' cleanup goroutines.
func NewServer(addr string, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}
	if deps.RefreshPerMinute <= 0 {
		deps.RefreshPerMinute = defaultRefreshPerMinute
	}

	s := &Server{
		auth:      deps.Auth,
		datasets:  deps.Datasets,
		snapshots: deps.Snapshots,
		logger:    deps.Logger,
		db:        deps.DB,
		now:       deps.Now,
		detector:  security.NewDetector(),
		refreshLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RefreshPerMinute,
			Burst:             2,
		}),
		signInLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: signInPerMinute,
			Burst:             5,
		}),
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			deps.Logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(deps.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trace.RequestIDHeader},
		ExposedHeaders:   []string{trace.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotification(w, r, http.StatusNotFound, "not_found", "Recurso não encontrado")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeNotification(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Método não permitido")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/setup/status", s.handleSetupStatus)
		r.Post("/setup", s.handleSetup)
		r.With(s.signInLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)).
			Post("/auth/signin", s.handleSignIn)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/auth/signout", s.handleSignOut)
			r.Get("/me", s.handleMe)

			r.Get("/board", s.handleBoard)
			r.Get("/cessionarios", s.handleCessionarios)
			r.Get("/acquisitions", s.handleAcquisitions)
			r.Get("/summary", s.handleSummary)

			r.Get("/analytics/series", s.handleSeries)
			r.Get("/analytics/breakdown", s.handleBreakdown)
			r.Get("/analytics/incidentes", s.handleIncidentes)

			r.Get("/snapshot/pending", s.handlePendingSnapshot)
			r.With(s.refreshLimiter.Middleware(profileKey, s.onRateLimit)).
				Post("/refresh", s.handleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/users", s.handleListUsers)
				r.Post("/users", s.handleCreateUser)
				r.Delete("/users/{id}", s.handleDeleteUser)
				r.Delete("/snapshot/pending", s.handleInvalidateSnapshots)
				r.Get("/metrics", s.handleMetrics)
			})
		})
	})

	return r
}

// Shutdown gracefully shuts down the server and the limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.refreshLimiter.Stop()
		s.signInLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type metricsResponse struct {
	Requests trace.Metrics             `json:"requests"`
	Security security.DetectionMetrics `json:"security"`
	Refresh  ratelimit.Metrics         `json:"refresh_limiter"`
	SignIn   ratelimit.Metrics         `json:"signin_limiter"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metricsResponse{
		Requests: s.tracer.GetMetrics(),
		Security: s.detector.GetMetrics(),
		Refresh:  s.refreshLimiter.GetMetrics(),
		SignIn:   s.signInLimiter.GetMetrics(),
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	writeNotification(w, r, http.StatusTooManyRequests, "rate_limited", "Muitas solicitações. Tente novamente em instantes.")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the first dataset has loaded and the
// database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.datasets == nil || s.datasets.Current() == nil {
		writeNotification(w, r, http.StatusServiceUnavailable, "not_ready", "Dados ainda não carregados")
		return
	}
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			writeNotification(w, r, http.StatusServiceUnavailable, "not_ready", "Banco de dados indisponível")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
