// Package server exposes a user portfolio over an HTTP JSON API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/etnz/folio"
	"github.com/etnz/folio/advisor"
	"github.com/etnz/folio/renderer"
	"github.com/etnz/folio/store"
)

// Config holds the server dependencies.
type Config struct {
	Addr           string
	User           string
	Store          store.Store
	Valuator       *folio.Valuator
	FX             renderer.FX
	Advisor        *advisor.Advisor // nil disables /api/portfolio/advice
	AllowedOrigins []string
	Log            zerolog.Logger
}

// Server serves the portfolio of one user.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	user     string
	store    store.Store
	valuator *folio.Valuator
	fx       renderer.FX
	advisor  *advisor.Advisor
}

// New creates a Server.
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		user:     cfg.User,
		store:    cfg.Store,
		valuator: cfg.Valuator,
		fx:       cfg.FX,
		advisor:  cfg.Advisor,
	}

	s.setupMiddleware(cfg.AllowedOrigins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // a refresh paces provider calls
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", s.handlePortfolio)
			r.Get("/chart.png", s.handleChart)
			r.Get("/report.html", s.handleReport)
			r.Get("/advice", s.handleAdvice)
		})
		r.Route("/holdings", func(r chi.Router) {
			r.Get("/", s.handleListHoldings)
			r.Post("/", s.handleAddHolding)
			r.Delete("/{id}", s.handleDeleteHolding)
			r.Post("/{id}/sell", s.handleSellHolding)
		})
	})
}

// Handler returns the HTTP handler of s.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens and serves until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
