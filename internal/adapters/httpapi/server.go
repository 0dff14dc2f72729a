package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config son los parámetros del servidor HTTP.
type Config struct {
	Port            int
	CORSOrigins     []string
	RateLimitPerSec float64
	RateLimitBurst  int
}

// Server es el servidor HTTP del mercado: rutas REST, feed WebSocket y
// la cadena de middleware (CORS → logging → rate limit).
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer monta las rutas y la cadena de middleware.
func NewServer(cfg Config, api *API, hub *Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", api.Health)

	mux.HandleFunc("POST /api/markets", api.CreateMarket)
	mux.HandleFunc("GET /api/markets", api.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", api.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/orderbook", api.GetOrderBook)
	mux.HandleFunc("GET /api/markets/{id}/trades", api.GetMarketTrades)
	mux.HandleFunc("POST /api/markets/{id}/resolve", api.ResolveMarket)

	mux.HandleFunc("POST /api/orders", api.PlaceOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", api.CancelOrder)

	mux.HandleFunc("GET /api/traders/{id}/orders", api.GetTraderOrders)

	mux.HandleFunc("GET /ws", hub.HandleWS)

	limiter := newRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	var handler http.Handler = mux
	handler = limiter.middleware(handler)
	handler = loggingMiddleware(logger, handler)
	handler = corsMiddleware(cfg.CORSOrigins, handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start arranca el servidor y bloquea hasta que se cierre.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpapi.Start: %w", err)
	}
	return nil
}

// Shutdown apaga el servidor drenando las conexiones en curso.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi.Shutdown: %w", err)
	}
	return nil
}

// Handler expone el handler raíz, útil para tests con httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
