package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPosition_PnLAndGain(t *testing.T) {
	tests := []struct {
		name         string
		position     Position
		currentPrice decimal.Decimal
		expectedPnL  decimal.Decimal
		expectedGain decimal.Decimal
	}{
		{
			name:         "price up",
			position:     Position{Ticker: "T", Quantity: 100, EntryPrice: decimal.NewFromInt(1000)},
			currentPrice: decimal.NewFromInt(1100),
			expectedPnL:  decimal.NewFromInt(10000),
			expectedGain: decimal.NewFromFloat(0.1),
		},
		{
			name:         "price down",
			position:     Position{Ticker: "T", Quantity: 50, EntryPrice: decimal.NewFromInt(1000)},
			currentPrice: decimal.NewFromInt(950),
			expectedPnL:  decimal.NewFromInt(-2500),
			expectedGain: decimal.NewFromFloat(-0.05),
		},
		{
			name:         "no entry price",
			position:     Position{Ticker: "T", Quantity: 1},
			currentPrice: decimal.NewFromInt(10),
			expectedPnL:  decimal.NewFromInt(10),
			expectedGain: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.expectedPnL.Equal(tt.position.PnL(tt.currentPrice)),
				"pnl: expected %s, got %s", tt.expectedPnL, tt.position.PnL(tt.currentPrice))
			assert.True(t, tt.expectedGain.Equal(tt.position.Gain(tt.currentPrice)),
				"gain: expected %s, got %s", tt.expectedGain, tt.position.Gain(tt.currentPrice))
		})
	}
}

func TestPosition_MarketValue(t *testing.T) {
	p := Position{Quantity: 200, CurrentPrice: decimal.NewFromFloat(12.5)}
	assert.True(t, p.MarketValue().Equal(decimal.NewFromInt(2500)))
	assert.True(t, p.IsOpen())
	assert.False(t, Position{}.IsOpen())
}

func TestDrawdown(t *testing.T) {
	initial := decimal.NewFromInt(1000000)

	assert.True(t, Drawdown(initial, decimal.NewFromInt(850000)).Equal(decimal.NewFromFloat(0.15)))
	assert.True(t, Drawdown(initial, decimal.NewFromInt(1100000)).Equal(decimal.NewFromFloat(-0.1)))
	assert.True(t, Drawdown(decimal.Zero, decimal.NewFromInt(5)).IsZero())
}
