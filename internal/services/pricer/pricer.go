// Package pricer provides market data sources for the trading cycle.
package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// ErrUnknownTicker is returned when a source has no data at all for a ticker.
// It is not retried.
var ErrUnknownTicker = errors.New("unknown ticker")

// Source provides latest prices and recent OHLC history.
type Source interface {
	GetLatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	GetRecentRange(ctx context.Context, ticker string, window int) ([]domain.Candle, error)
}
