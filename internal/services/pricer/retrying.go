package pricer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/pkg/retrier"
)

// RetryingSource retries every call of the wrapped source with bounded
// exponential backoff. Exhausted calls fail with domain.ErrDataUnavailable.
type RetryingSource struct {
	next    Source
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewRetryingSource wraps next. Options override the retrier defaults.
func NewRetryingSource(next Source, logger *zap.Logger, opts ...retrier.Option) *RetryingSource {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := []retrier.Option{
		retrier.WithRetryIf(func(err error) bool {
			return !errors.Is(err, ErrUnknownTicker) &&
				!errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded)
		}),
	}

	return &RetryingSource{
		next:    next,
		retrier: retrier.New(append(base, opts...)...),
		logger:  logger,
	}
}

// GetLatestPrice fetches the latest price of ticker.
func (s *RetryingSource) GetLatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	r := s.withLogging(ticker, "latest price")
	price, err := retrier.DoWithData(r, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return s.next.GetLatestPrice(ctx, ticker)
	})
	if err != nil {
		return decimal.Zero, unavailable(ticker, "latest price", err)
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(domain.ErrDataUnavailable, "%s: non-positive price %s", ticker, price)
	}
	return price, nil
}

// GetRecentRange fetches the recent candles of ticker.
func (s *RetryingSource) GetRecentRange(ctx context.Context, ticker string, window int) ([]domain.Candle, error) {
	r := s.withLogging(ticker, "recent range")
	candles, err := retrier.DoWithData(r, ctx, func(ctx context.Context) ([]domain.Candle, error) {
		return s.next.GetRecentRange(ctx, ticker, window)
	})
	if err != nil {
		return nil, unavailable(ticker, "recent range", err)
	}
	return candles, nil
}

func (s *RetryingSource) withLogging(ticker, what string) *retrier.Retrier {
	r := *s.retrier
	retrier.WithOnRetry(func(attempt int, wait time.Duration, err error) {
		s.logger.Warn("price source call failed, retrying",
			zap.String("ticker", ticker),
			zap.String("call", what),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})(&r)
	return &r
}

func unavailable(ticker, what string, err error) error {
	if errors.Is(err, domain.ErrDataUnavailable) {
		return err
	}
	return errors.Wrapf(domain.ErrDataUnavailable, "%s %s: %v", ticker, what, err)
}
