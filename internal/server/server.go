// Package server exposes the engine over HTTP. It is a thin boundary: all
// invariants live in the engine and the read services behind it.
package server

import (
	"context"

	"aigotrade/internal/domain"
	"aigotrade/internal/service"

	"github.com/gin-gonic/gin"
)

// OrderExecutor is the mutating surface consumed by the HTTP boundary.
type OrderExecutor interface {
	ExecuteOrder(ctx context.Context, req domain.OrderRequest) (*domain.Transaction, error)
	OpenAccount(ctx context.Context, accountID string) (*domain.Account, error)
}

// PortfolioReader is the read-only surface consumed by the HTTP boundary.
type PortfolioReader interface {
	GetPortfolio(ctx context.Context, accountID string) (*service.PortfolioSnapshot, error)
	GetHolding(ctx context.Context, accountID, symbol string) (*service.HoldingView, error)
	GetTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error)
}

// Server wires the HTTP routes to the engine.
type Server struct {
	executor  OrderExecutor
	portfolio PortfolioReader
}

// New creates the HTTP server facade.
func New(executor OrderExecutor, portfolio PortfolioReader) *Server {
	return &Server{executor: executor, portfolio: portfolio}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/trading")
	{
		api.POST("/accounts", s.openAccount)
		api.POST("/orders", s.executeOrder)
		api.GET("/portfolio/:account", s.getPortfolio)
		api.GET("/holdings/:account/:symbol", s.getHolding)
		api.GET("/transactions/:account", s.getTransactions)
	}

	r.GET("/healthz", s.health)
	r.GET("/metrics", s.metrics)

	return r
}
