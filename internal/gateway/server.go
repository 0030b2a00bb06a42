// Package gateway assembles the HTTP API of the betting core: wallet custody
// endpoints, synchronous bet placement and cash-out, and the asynchronous
// settlement request surface.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sportsbook-betting-core/internal/betbook"
	"github.com/sportsbook-betting-core/internal/config"
	"github.com/sportsbook-betting-core/internal/gateway/handler"
	"github.com/sportsbook-betting-core/internal/platform/messaging/producers"
	"github.com/sportsbook-betting-core/internal/settlementengine"
	"github.com/sportsbook-betting-core/internal/walletledger"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer creates and configures a new HTTP server over the given services
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	ledger walletledger.Service,
	book betbook.Service,
	engine settlementengine.Engine,
	settlementRequests producers.MessagePublisher,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	walletHandler := handler.NewWalletHandler(log, ledger)
	betHandler := handler.NewBetHandler(log, book)
	settlementHandler := handler.NewSettlementHandler(log, settlementRequests, engine)

	setupRouter(log, httpRouter, walletHandler, betHandler, settlementHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}
