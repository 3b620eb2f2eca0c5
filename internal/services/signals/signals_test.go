package signals

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

const sample = `
signals:
  - ticker: 7203.T
    action: buy
    confidence: 0.8
    reason: volume breakout
  - ticker: AAPL
    action: SELL
    confidence: 1
  - ticker: ""
    action: buy
    confidence: 0.5
  - ticker: MSFT
    action: hold
    confidence: 0.5
  - ticker: NVDA
    action: buy
    confidence: 2
`

func TestParse(t *testing.T) {
	out, rejected, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "7203.T", out[0].Ticker)
	assert.Equal(t, domain.ActionBuy, out[0].Action)
	assert.Equal(t, "volume breakout", out[0].Reason)
	assert.Equal(t, domain.ActionSell, out[1].Action)

	require.Len(t, rejected, 3)
	assert.Equal(t, 2, rejected[0].Index)
	for _, r := range rejected {
		assert.True(t, errors.Is(r.Err, domain.ErrInvalidSignal))
	}

	_, _, err = Parse([]byte("signals: {"))
	require.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.yaml")
	src := NewFileSource(path, zap.NewNop())

	out, err := src.Signals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out, "missing file means no signals")

	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	out, err = src.Signals(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
