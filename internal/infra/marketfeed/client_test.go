package marketfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"aigotrade/internal/domain"

	"github.com/shopspring/decimal"
)

func newTestCache(t *testing.T) *QuoteCache {
	t.Helper()
	cache, err := NewQuoteCache(time.Hour)
	if err != nil {
		t.Fatalf("NewQuoteCache failed: %v", err)
	}
	return cache
}

func quoteJSON(symbol string, price, prevClose float64) string {
	return fmt.Sprintf(`{"symbol":%q,"price":%v,"previous_close":%v,"timestamp":%d}`,
		symbol, price, prevClose, time.Now().UnixMilli())
}

func TestGetQuote_FetchesAndServesFromCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprintf(w, "[%s]", quoteJSON("AAPL", 187.5, 185.0))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second, time.Hour, newTestCache(t))

	q, err := client.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if !q.Price.Equal(decimal.NewFromFloat(187.5)) {
		t.Errorf("expected price 187.5, got %v", q.Price)
	}
	if q.Stale {
		t.Error("fresh fetch must not be stale")
	}

	// Within the fresh window the cache answers without another round-trip.
	if _, err := client.GetQuote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("cached GetQuote failed: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected 1 upstream request, got %d", n)
	}
}

func TestGetQuote_RetriesTransientFailure(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, "[%s]", quoteJSON("AAPL", 187.5, 185.0))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second, time.Hour, newTestCache(t))

	q, err := client.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetQuote should survive one bad response: %v", err)
	}
	if !q.Price.Equal(decimal.NewFromFloat(187.5)) {
		t.Errorf("expected price 187.5, got %v", q.Price)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("expected 2 upstream requests, got %d", n)
	}
}

func TestGetQuote_StaleFallbackWhenProviderDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cache := newTestCache(t)
	cache.Set(domain.Quote{
		Symbol:     "AAPL",
		Price:      decimal.NewFromInt(180),
		ObservedAt: time.Now().Add(-time.Minute),
	})

	client := NewClient(srv.URL, time.Second, 10*time.Second, cache)

	q, err := client.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if !q.Stale {
		t.Error("fallback quote must be flagged stale")
	}
	if !q.Price.Equal(decimal.NewFromInt(180)) {
		t.Errorf("expected last-known price 180, got %v", q.Price)
	}
}

func TestGetQuote_UnavailableWithEmptyCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, 10*time.Second, newTestCache(t))

	_, err := client.GetQuote(context.Background(), "AAPL")
	if !errors.Is(err, domain.ErrQuoteUnavailable) {
		t.Errorf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestGetQuotes_PartialDegradation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The provider only knows AAPL; MSFT and GHOST are missing from
		// the response.
		fmt.Fprintf(w, "[%s]", quoteJSON("AAPL", 187.5, 185.0))
	}))
	defer srv.Close()

	cache := newTestCache(t)
	cache.Set(domain.Quote{
		Symbol:     "MSFT",
		Price:      decimal.NewFromInt(410),
		ObservedAt: time.Now().Add(-time.Minute),
	})

	client := NewClient(srv.URL, time.Second, 10*time.Second, cache)

	quotes, err := client.GetQuotes(context.Background(), []string{"AAPL", "MSFT", "GHOST"})
	if err != nil {
		t.Fatalf("GetQuotes failed: %v", err)
	}

	if q, ok := quotes["AAPL"]; !ok || q.Stale {
		t.Errorf("AAPL should be fresh, got %+v (present=%v)", q, ok)
	}
	if q, ok := quotes["MSFT"]; !ok || !q.Stale {
		t.Errorf("MSFT should come stale from cache, got %+v (present=%v)", q, ok)
	}
	if _, ok := quotes["GHOST"]; ok {
		t.Error("GHOST has no price anywhere and must be absent")
	}
}

func TestGetQuotes_EmptySymbolList(t *testing.T) {
	client := NewClient("http://unused.invalid", time.Second, 10*time.Second, newTestCache(t))

	quotes, err := client.GetQuotes(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetQuotes failed: %v", err)
	}
	if len(quotes) != 0 {
		t.Errorf("expected empty result, got %d entries", len(quotes))
	}
}

func TestGetQuotes_RequestsSymbolsInBatches(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		symbols := strings.Split(r.URL.Query().Get("symbols"), ",")
		if len(symbols) > batchSize {
			t.Errorf("batch of %d exceeds limit %d", len(symbols), batchSize)
		}
		parts := make([]string, len(symbols))
		for i, s := range symbols {
			parts[i] = quoteJSON(s, 100, 99)
		}
		fmt.Fprintf(w, "[%s]", strings.Join(parts, ","))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 2*time.Second, 10*time.Second, newTestCache(t))

	symbols := make([]string, 45)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("SYM%02d", i)
	}

	quotes, err := client.GetQuotes(context.Background(), symbols)
	if err != nil {
		t.Fatalf("GetQuotes failed: %v", err)
	}
	if len(quotes) != len(symbols) {
		t.Errorf("expected %d quotes, got %d", len(symbols), len(quotes))
	}
	// 45 symbols at 20 per request.
	if n := requests.Load(); n != 3 {
		t.Errorf("expected 3 upstream requests, got %d", n)
	}
}
