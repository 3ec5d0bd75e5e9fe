package marketfeed

import (
	"time"

	"aigotrade/internal/domain"

	"github.com/dgraph-io/ristretto"
)

// QuoteCache holds the last-known quote per symbol with a TTL. It backs the
// stale-price fallback on read paths: a holding whose live fetch failed is
// reported at its cached price and flagged stale rather than failing the
// whole portfolio call.
type QuoteCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewQuoteCache creates a quote cache retaining entries for ttl.
func NewQuoteCache(ttl time.Duration) (*QuoteCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &QuoteCache{cache: c, ttl: ttl}, nil
}

// Set stores a quote as the last-known price for its symbol.
func (c *QuoteCache) Set(q domain.Quote) {
	c.cache.SetWithTTL(q.Symbol, q, 1, c.ttl)
	// Writes are buffered; make them visible to immediate readers.
	c.cache.Wait()
}

// Get returns the last-known quote for a symbol.
func (c *QuoteCache) Get(symbol string) (domain.Quote, bool) {
	v, ok := c.cache.Get(symbol)
	if !ok {
		return domain.Quote{}, false
	}
	return v.(domain.Quote), true
}
