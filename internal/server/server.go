// Package server assembles the HTTP + WebSocket API for the dutchmint
// service: public sale queries and purchases, administrative mutations, and a
// live event stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mintfolio/dutchmint/internal/domain"
	"github.com/mintfolio/dutchmint/internal/server/handler"
	"github.com/mintfolio/dutchmint/internal/server/middleware"
	"github.com/mintfolio/dutchmint/internal/server/ws"
)

// purchase rate limit per client IP.
const (
	purchaseRateLimit  = 30
	purchaseRateWindow = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Sales  *handler.SaleHandler
	Mints  *handler.MintHandler
	Admin  *handler.AdminHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain wired: rate limiting on purchases, then auth, logging,
// and CORS around everything.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Read-only sale endpoints.
	mux.HandleFunc("GET /api/sales/{edition}/{saleID}", handlers.Sales.GetSale)
	mux.HandleFunc("GET /api/sales/{edition}/{saleID}/price", handlers.Sales.GetPrice)
	mux.HandleFunc("GET /api/sales/{edition}/{saleID}/floor", handlers.Sales.GetFloor)
	mux.HandleFunc("GET /api/sales/{edition}/{saleID}/receipts", handlers.Sales.ListReceipts)
	mux.HandleFunc("GET /api/audit", handlers.Sales.ListAudit)

	// Purchase endpoint, rate limited per client.
	var purchase http.Handler = http.HandlerFunc(handlers.Mints.Purchase)
	if limiter != nil {
		purchase = middleware.RateLimit(limiter, purchaseRateLimit, purchaseRateWindow)(purchase)
	}
	mux.Handle("POST /api/sales/{edition}/{saleID}/purchase", purchase)

	// Administrative endpoints.
	mux.HandleFunc("POST /api/sales", handlers.Admin.CreateSale)
	mux.HandleFunc("PUT /api/sales/{edition}/{saleID}/schedule", handlers.Admin.SetSchedule)
	mux.HandleFunc("PUT /api/sales/{edition}/{saleID}/max-mintable", handlers.Admin.SetMaxMintable)
	mux.HandleFunc("PUT /api/sales/{edition}/{saleID}/max-mintable-per-account", handlers.Admin.SetMaxMintablePerAccount)
	mux.HandleFunc("PUT /api/sales/{edition}/{saleID}/paused", handlers.Admin.SetMintPaused)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
