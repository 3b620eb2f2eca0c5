package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

func flatCandles(n int, high, low, closePrice int64) []domain.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, n)
	for i := range candles {
		candles[i] = domain.Candle{
			Time:  start.AddDate(0, 0, i),
			Open:  decimal.NewFromInt(closePrice),
			High:  decimal.NewFromInt(high),
			Low:   decimal.NewFromInt(low),
			Close: decimal.NewFromInt(closePrice),
		}
	}
	return candles
}

func TestLatestATR_ConstantRange(t *testing.T) {
	atr, err := LatestATR(flatCandles(30, 1010, 990, 1000), DefaultATRPeriod)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, atr.InexactFloat64(), 1e-9)
}

func TestCalculateATR_NotEnoughData(t *testing.T) {
	_, err := CalculateATR(flatCandles(14, 1010, 990, 1000), 14)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need 15, got 14")

	_, err = LatestATR(flatCandles(5, 2, 1, 1), 0)
	require.Error(t, err)
}

func TestCalculateATR_WiderRangeRaisesATR(t *testing.T) {
	narrow, err := LatestATR(flatCandles(20, 1005, 995, 1000), 5)
	require.NoError(t, err)
	wide, err := LatestATR(flatCandles(20, 1050, 950, 1000), 5)
	require.NoError(t, err)
	assert.True(t, wide.GreaterThan(narrow))
}
