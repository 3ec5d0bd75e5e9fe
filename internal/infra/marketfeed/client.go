// Package marketfeed supplies live prices to the engine: a polling REST
// client with a last-known cache, and an optional websocket stream keeping
// that cache warm.
package marketfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"aigotrade/internal/domain"
	"aigotrade/internal/infra"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	fetchAttempts   = 3
	batchSize       = 20 // Symbols per REST request
	batchParallel   = 4  // Concurrent batch requests
	defaultFreshFor = 10 * time.Second
)

// quoteResponse represents one entry of the provider's quote endpoint.
type quoteResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	Timestamp     int64   `json:"timestamp"` // Unix milliseconds
}

// Client fetches quotes over HTTP. Concurrent requests for the same symbol
// are collapsed into one upstream call; successful fetches refresh the
// last-known cache, and failed ones fall back to it with the stale flag set.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *QuoteCache
	group      singleflight.Group
	freshFor   time.Duration
}

// NewClient creates a quote client against baseURL. requestTimeout bounds
// every upstream round-trip; freshFor is how long a cached quote is served
// without hitting the provider again.
func NewClient(baseURL string, requestTimeout, freshFor time.Duration, cache *QuoteCache) *Client {
	if freshFor <= 0 {
		freshFor = defaultFreshFor
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		cache:    cache,
		freshFor: freshFor,
	}
}

// GetQuote returns a fresh price for one symbol. A fetch failure downgrades
// to the last-known cached quote flagged stale; with no cache entry either,
// ErrQuoteUnavailable is returned.
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if q, ok := c.cache.Get(symbol); ok && time.Since(q.ObservedAt) <= c.freshFor && !q.Stale {
		return q, nil
	}

	v, err, _ := c.group.Do(symbol, func() (interface{}, error) {
		quotes, err := c.fetch(ctx, []string{symbol})
		if err != nil {
			return nil, err
		}
		q, ok := quotes[symbol]
		if !ok {
			return nil, fmt.Errorf("symbol %s not in provider response", symbol)
		}
		return q, nil
	})
	if err == nil {
		return v.(domain.Quote), nil
	}

	infra.GlobalMetrics.RecordQuoteFailure()
	if q, ok := c.cache.Get(symbol); ok {
		q.Stale = true
		return q, nil
	}
	return domain.Quote{}, fmt.Errorf("%w: %s: %v", domain.ErrQuoteUnavailable, symbol, err)
}

// GetQuotes fetches prices for many symbols, batched per request and
// bounded-parallel across batches. Symbols that could not be priced even
// from cache are absent from the result; the call itself only fails on
// context cancellation.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	result := make(map[string]domain.Quote, len(symbols))
	if len(symbols) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallel)

	for start := 0; start < len(symbols); start += batchSize {
		batch := symbols[start:min(start+batchSize, len(symbols))]
		g.Go(func() error {
			quotes, err := c.fetch(ctx, batch)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				infra.GlobalMetrics.RecordQuoteFailure()
				slog.Warn("Batch quote fetch failed, serving cache",
					slog.Int("symbols", len(batch)), slog.Any("error", err))
				quotes = map[string]domain.Quote{}
			}
			mu.Lock()
			defer mu.Unlock()
			for _, sym := range batch {
				if q, ok := quotes[sym]; ok {
					result[sym] = q
					continue
				}
				if q, ok := c.cache.Get(sym); ok {
					q.Stale = true
					result[sym] = q
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// fetch performs the upstream request with bounded retries and refreshes the
// cache for every returned symbol.
func (c *Client) fetch(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	var lastErr error
	for i := 0; i < fetchAttempts; i++ {
		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * 200 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		quotes, err := c.doFetch(ctx, symbols)
		if err == nil {
			return quotes, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doFetch(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/v1/quotes?symbols=%s",
		c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var data []quoteResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}

	quotes := make(map[string]domain.Quote, len(data))
	for _, entry := range data {
		if entry.Price <= 0 {
			continue
		}
		q := domain.Quote{
			Symbol:     entry.Symbol,
			Price:      decimal.NewFromFloat(entry.Price),
			PrevClose:  decimal.NewFromFloat(entry.PreviousClose),
			ObservedAt: time.UnixMilli(entry.Timestamp),
		}
		if entry.Timestamp == 0 {
			q.ObservedAt = time.Now()
		}
		c.cache.Set(q)
		quotes[entry.Symbol] = q
	}
	return quotes, nil
}
