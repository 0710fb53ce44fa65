// Package dashboard serves the strategy engine and trade journal over a JSON
// HTTP API.
package dashboard

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/strategy_lab/internal/analysis"
	"github.com/eddiefleurent/strategy_lab/internal/marketdata"
	"github.com/eddiefleurent/strategy_lab/internal/storage"
)

// Server is the HTTP API.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	storage   storage.Interface
	quotes    marketdata.Provider
	logger    *logrus.Logger
	cfg       Config
	startedAt time.Time
}

// Config holds the server settings and the pricing defaults applied to
// requests that leave them out.
type Config struct {
	Port              int
	AuthToken         string
	RequestTimeout    time.Duration
	RiskFreeRate      float64
	DefaultVolatility float64
	Analysis          analysis.Options
	DaysToExpiry      int    // strategy comparison expiry
	Symbol            string // default underlying
}

// NewServer wires the routes. quotes may be nil, in which case endpoints
// that need a live price require it in the request.
func NewServer(cfg Config, storage storage.Interface, quotes marketdata.Provider, logger *logrus.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "SPY"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		router:    chi.NewRouter(),
		storage:   storage,
		quotes:    quotes,
		logger:    logger,
		cfg:       cfg,
		startedAt: time.Now(),
	}

	s.setupRoutes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))

	if s.cfg.AuthToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/price", s.handlePrice)
		r.Post("/iv", s.handleImpliedVolatility)
		r.Post("/legs/pnl", s.handleLegPnL)

		r.Get("/strategies", s.handleListStrategies)
		r.Post("/strategies/build", s.handleBuildStrategy)
		r.Post("/strategies/analyze", s.handleAnalyzeStrategy)
		r.Post("/strategies/validate", s.handleValidateStrategy)
		r.Get("/strategies/compare", s.handleCompareStrategies)

		r.Get("/quotes/{symbol}", s.handleGetQuote)

		r.Get("/trades", s.handleListTrades)
		r.Post("/trades", s.handleAddTrade)
		r.Get("/trades/stats", s.handleGetStats)
		r.Get("/trades/{id}", s.handleGetTrade)
		r.Delete("/trades/{id}", s.handleDeleteTrade)
		r.Get("/trades/{id}/mark", s.handleMarkTrade)
		r.Post("/trades/{id}/close", s.handleCloseTrade)

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	s.logger.Infof("Starting API server on port %d", s.cfg.Port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}
	s.writeJSON(w, http.StatusOK, health)
}
