package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aigotrade/internal/domain"
	"aigotrade/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExecutor struct {
	account *domain.Account
	tx      *domain.Transaction
	err     error

	gotOrder domain.OrderRequest
}

func (s *stubExecutor) OpenAccount(context.Context, string) (*domain.Account, error) {
	return s.account, s.err
}

func (s *stubExecutor) ExecuteOrder(_ context.Context, req domain.OrderRequest) (*domain.Transaction, error) {
	s.gotOrder = req
	return s.tx, s.err
}

type stubReader struct {
	snapshot *service.PortfolioSnapshot
	view     *service.HoldingView
	txs      []domain.Transaction
	err      error

	gotLimit int
}

func (s *stubReader) GetPortfolio(context.Context, string) (*service.PortfolioSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubReader) GetHolding(context.Context, string, string) (*service.HoldingView, error) {
	return s.view, s.err
}

func (s *stubReader) GetTransactions(_ context.Context, _ string, limit int) ([]domain.Transaction, error) {
	s.gotLimit = limit
	return s.txs, s.err
}

func doRequest(t *testing.T, exec OrderExecutor, reader PortfolioReader, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := New(exec, reader).Router()
	var reqBody *strings.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	} else {
		reqBody = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reqBody)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestExecuteOrderEndpoint(t *testing.T) {
	exec := &stubExecutor{tx: &domain.Transaction{
		ID:             "tx-1",
		AccountID:      "acct-1",
		SequenceNumber: 7,
		Symbol:         "XYZ",
		Side:           domain.SideBuy,
		Quantity:       decimal.NewFromInt(10),
		Price:          decimal.NewFromInt(50),
		TotalAmount:    decimal.NewFromInt(500),
	}}

	w := doRequest(t, exec, &stubReader{}, http.MethodPost, "/api/trading/orders",
		`{"account_id":"acct-1","symbol":"XYZ","side":"buy","quantity":"10","request_id":"req-1"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if exec.gotOrder.AccountID != "acct-1" || exec.gotOrder.RequestID != "req-1" {
		t.Errorf("order request not passed through: %+v", exec.gotOrder)
	}
	if !exec.gotOrder.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected quantity 10, got %v", exec.gotOrder.Quantity)
	}

	var resp domain.Transaction
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.SequenceNumber != 7 {
		t.Errorf("expected sequence 7, got %d", resp.SequenceNumber)
	}
}

func TestExecuteOrderEndpoint_MissingFields(t *testing.T) {
	w := doRequest(t, &stubExecutor{}, &stubReader{}, http.MethodPost, "/api/trading/orders",
		`{"symbol":"XYZ"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fields, got %d", w.Code)
	}
}

func TestExecuteOrderEndpoint_ErrorMapping(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		retriable bool
	}{
		{domain.ErrInvalidQuantity, http.StatusBadRequest, false},
		{domain.ErrInvalidSide, http.StatusBadRequest, false},
		{domain.ErrInvalidPrice, http.StatusBadRequest, false},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity, false},
		{domain.ErrInsufficientShares, http.StatusUnprocessableEntity, false},
		{domain.ErrAccountNotFound, http.StatusNotFound, false},
		{domain.ErrAccountInactive, http.StatusForbidden, false},
		{domain.ErrQuoteUnavailable, http.StatusBadGateway, true},
		{domain.ErrPersistenceFailure, http.StatusInternalServerError, true},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			exec := &stubExecutor{err: tc.err}
			w := doRequest(t, exec, &stubReader{}, http.MethodPost, "/api/trading/orders",
				`{"account_id":"acct-1","symbol":"XYZ","side":"buy","quantity":"1"}`)

			if w.Code != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, w.Code)
			}
			var body struct {
				Retriable bool `json:"retriable"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("bad response body: %v", err)
			}
			if body.Retriable != tc.retriable {
				t.Errorf("expected retriable=%v, got %v", tc.retriable, body.Retriable)
			}
		})
	}
}

func TestOpenAccountEndpoint(t *testing.T) {
	exec := &stubExecutor{account: &domain.Account{
		ID: "acct-1", CashBalance: decimal.NewFromInt(10000), Active: true,
	}}

	w := doRequest(t, exec, &stubReader{}, http.MethodPost, "/api/trading/accounts",
		`{"account_id":"acct-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, exec, &stubReader{}, http.MethodPost, "/api/trading/accounts", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without account_id, got %d", w.Code)
	}
}

func TestGetPortfolioEndpoint(t *testing.T) {
	reader := &stubReader{snapshot: &service.PortfolioSnapshot{
		AccountID:   "acct-1",
		CashBalance: decimal.NewFromInt(9500),
		TotalValue:  decimal.NewFromInt(10000),
	}}

	w := doRequest(t, &stubExecutor{}, reader, http.MethodGet, "/api/trading/portfolio/acct-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var snap service.PortfolioSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if snap.AccountID != "acct-1" || !snap.TotalValue.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestGetPortfolioEndpoint_NotFound(t *testing.T) {
	reader := &stubReader{err: domain.ErrAccountNotFound}

	w := doRequest(t, &stubExecutor{}, reader, http.MethodGet, "/api/trading/portfolio/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetHoldingEndpoint_NotFound(t *testing.T) {
	reader := &stubReader{err: domain.ErrHoldingNotFound}

	w := doRequest(t, &stubExecutor{}, reader, http.MethodGet, "/api/trading/holdings/acct-1/NOPE", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetTransactionsEndpoint_Limit(t *testing.T) {
	reader := &stubReader{}

	w := doRequest(t, &stubExecutor{}, reader, http.MethodGet, "/api/trading/transactions/acct-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if reader.gotLimit != defaultHistoryLimit {
		t.Errorf("expected default limit %d, got %d", defaultHistoryLimit, reader.gotLimit)
	}

	doRequest(t, &stubExecutor{}, reader, http.MethodGet, "/api/trading/transactions/acct-1?limit=5", "")
	if reader.gotLimit != 5 {
		t.Errorf("expected limit 5, got %d", reader.gotLimit)
	}
}

func TestHealthEndpoint(t *testing.T) {
	w := doRequest(t, &stubExecutor{}, &stubReader{}, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := doRequest(t, &stubExecutor{}, &stubReader{}, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("metrics response is not JSON: %v", err)
	}
	if _, ok := body["orders_executed"]; !ok {
		t.Error("expected orders_executed counter in metrics")
	}
}
