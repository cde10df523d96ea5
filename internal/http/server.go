// Package http exposes the session stores as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logging"
	"github.com/fjod/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Sessions hands out the workspace of a session.
type Sessions interface {
	Workspace(ctx context.Context, id string) (*session.Workspace, error)
}

// ProductSource resolves product snapshots.
type ProductSource interface {
	GetProduct(ctx context.Context, id, bearerToken string) (*domain.Product, error)
}

type Options struct {
	Sessions           Sessions
	Catalog            ProductSource
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// AuthRate and AuthBurst limit auth requests per session.
	AuthRate  rate.Limit
	AuthBurst int
	// LimiterIdleTTL forgets the auth limiter of a session idle for that
	// long. Zero keeps every limiter.
	LimiterIdleTTL time.Duration
	Log            logging.Logger
}

type Server struct {
	sessions Sessions
	catalog  ProductSource
	timeout  time.Duration
	maxBody  int64
	limiter  *rateLimiter
	log      logging.Logger
}

func NewServer(opts Options) *Server {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxRequestBodySize == 0 {
		opts.MaxRequestBodySize = 1 << 20 // 1MB
	}
	if opts.AuthRate == 0 {
		opts.AuthRate = rate.Every(2 * time.Second)
	}
	if opts.AuthBurst == 0 {
		opts.AuthBurst = 10
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	return &Server{
		sessions: opts.Sessions,
		catalog:  opts.Catalog,
		timeout:  opts.RequestTimeout,
		maxBody:  opts.MaxRequestBodySize,
		limiter:  newRateLimiter(opts.AuthRate, opts.AuthBurst, opts.LimiterIdleTTL, time.Now),
		log:      opts.Log,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.limitBody)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware)
		r.Use(collectNotices)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.getCart)
			r.Delete("/", s.clearCart)
			r.Post("/items", s.addCartItem)
			r.Put("/items/{itemId}", s.updateCartItem)
			r.Delete("/items/{itemId}", s.removeCartItem)
		})

		r.Route("/compare", func(r chi.Router) {
			r.Get("/", s.getCompare)
			r.Post("/", s.addCompare)
			r.Delete("/", s.clearCompare)
			r.Delete("/{id}", s.removeCompare)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Use(s.limiter.middleware)
			r.Post("/login", s.login)
			r.Get("/lockout", s.lockout)
			r.Post("/otp/verify", s.verifyOTP)
			r.Post("/otp/resend", s.resendOTP)
			r.Get("/session", s.getSession)
			r.Post("/logout", s.logout)
		})

		r.Route("/preferences", func(r chi.Router) {
			r.Get("/theme", s.getTheme)
			r.Put("/theme", s.setTheme)
		})
	})

	return r
}

func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*session.Workspace, bool) {
	ws, err := s.sessions.Workspace(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		s.log.Error(r.Context(), "failed to load session", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "internal_error", "could not load session")
		return nil, false
	}
	return ws, true
}
