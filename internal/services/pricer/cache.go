package pricer

import (
	"context"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// CycleCache memoizes lookups of the wrapped source until Reset. Data
// unavailability is memoized too, so a ticker that is down costs one retry
// loop per cycle. Other failures are not cached.
type CycleCache struct {
	next Source

	mu        sync.Mutex
	prices    map[string]decimal.Decimal
	ranges    map[string][]domain.Candle
	priceErrs map[string]error
	rangeErrs map[string]error
}

// NewCycleCache wraps next.
func NewCycleCache(next Source) *CycleCache {
	c := &CycleCache{next: next}
	c.Reset()
	return c
}

// Reset drops every cached value.
func (c *CycleCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prices = make(map[string]decimal.Decimal)
	c.ranges = make(map[string][]domain.Candle)
	c.priceErrs = make(map[string]error)
	c.rangeErrs = make(map[string]error)
}

// GetLatestPrice returns the cached price or fetches it.
func (c *CycleCache) GetLatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	c.mu.Lock()
	price, ok := c.prices[ticker]
	cachedErr := c.priceErrs[ticker]
	c.mu.Unlock()
	if ok {
		return price, nil
	}
	if cachedErr != nil {
		return decimal.Zero, cachedErr
	}

	price, err := c.next.GetLatestPrice(ctx, ticker)
	if err != nil {
		if cacheable(err) {
			c.mu.Lock()
			c.priceErrs[ticker] = err
			c.mu.Unlock()
		}
		return decimal.Zero, err
	}

	c.mu.Lock()
	c.prices[ticker] = price
	c.mu.Unlock()
	return price, nil
}

// GetRecentRange returns the cached range or fetches it. The cache key
// includes the window.
func (c *CycleCache) GetRecentRange(ctx context.Context, ticker string, window int) ([]domain.Candle, error) {
	key := rangeKey(ticker, window)

	c.mu.Lock()
	candles, ok := c.ranges[key]
	cachedErr := c.rangeErrs[key]
	c.mu.Unlock()
	if ok {
		return candles, nil
	}
	if cachedErr != nil {
		return nil, cachedErr
	}

	candles, err := c.next.GetRecentRange(ctx, ticker, window)
	if err != nil {
		if cacheable(err) {
			c.mu.Lock()
			c.rangeErrs[key] = err
			c.mu.Unlock()
		}
		return nil, err
	}

	c.mu.Lock()
	c.ranges[key] = candles
	c.mu.Unlock()
	return candles, nil
}

func rangeKey(ticker string, window int) string {
	return ticker + "#" + strconv.Itoa(window)
}

func cacheable(err error) bool {
	return domain.KindOf(err) == domain.KindDataUnavailable
}
