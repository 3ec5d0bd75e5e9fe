package server

import (
	"errors"
	"net/http"
	"strconv"

	"aigotrade/internal/domain"
	"aigotrade/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const defaultHistoryLimit = 50

type accountInput struct {
	AccountID string `json:"account_id" binding:"required"`
}

type orderInput struct {
	AccountID  string           `json:"account_id" binding:"required"`
	Symbol     string           `json:"symbol" binding:"required"`
	Side       string           `json:"side" binding:"required"`
	Quantity   decimal.Decimal  `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limit_price"`
	RequestID  string           `json:"request_id"`
}

func (s *Server) openAccount(c *gin.Context) {
	var input accountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := s.executor.OpenAccount(c.Request.Context(), input.AccountID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (s *Server) executeOrder(c *gin.Context) {
	var input orderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := s.executor.ExecuteOrder(c.Request.Context(), domain.OrderRequest{
		AccountID:  input.AccountID,
		Symbol:     input.Symbol,
		Side:       input.Side,
		Quantity:   input.Quantity,
		LimitPrice: input.LimitPrice,
		RequestID:  input.RequestID,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "retriable": domain.IsRetriable(err)})
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (s *Server) getPortfolio(c *gin.Context) {
	snapshot, err := s.portfolio.GetPortfolio(c.Request.Context(), c.Param("account"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) getHolding(c *gin.Context) {
	view, err := s.portfolio.GetHolding(c.Request.Context(), c.Param("account"), c.Param("symbol"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getTransactions(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	txs, err := s.portfolio.GetTransactions(c.Request.Context(), c.Param("account"), limit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, infra.GlobalMetrics.Snapshot())
}

// statusFor maps the engine's error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidSide),
		errors.Is(err, domain.ErrInvalidPrice):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrHoldingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrQuoteUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
