// Package indicators provides the volatility indicators used by the stop manager.
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// DefaultATRPeriod is the conventional ATR lookback.
const DefaultATRPeriod = 14

// CalculateATR calculates the Average True Range series for the given period.
func CalculateATR(candles []domain.Candle, period int) ([]decimal.Decimal, error) {
	if period < 1 {
		return nil, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return nil, fmt.Errorf("not enough data points for ATR: need %d, got %d", period+1, len(candles))
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))

	for i, c := range candles {
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
		closes[i] = c.Close.InexactFloat64()
	}

	atr := volatility.NewAtrWithPeriod[float64](period)
	outputChan := atr.Compute(
		helper.SliceToChan(highs),
		helper.SliceToChan(lows),
		helper.SliceToChan(closes),
	)
	atrFloat := helper.ChanToSlice(outputChan)

	result := make([]decimal.Decimal, len(atrFloat))
	for i, v := range atrFloat {
		result[i] = decimal.NewFromFloat(v)
	}
	return result, nil
}

// LatestATR returns the most recent ATR value.
func LatestATR(candles []domain.Candle, period int) (decimal.Decimal, error) {
	series, err := CalculateATR(candles, period)
	if err != nil {
		return decimal.Zero, err
	}
	if len(series) == 0 {
		return decimal.Zero, fmt.Errorf("ATR produced no values for %d candles", len(candles))
	}
	return series[len(series)-1], nil
}
