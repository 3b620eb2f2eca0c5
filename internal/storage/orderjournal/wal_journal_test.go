package orderjournal

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWALJournal_RecordAndReplay(t *testing.T) {
	dir := t.TempDir()
	j, err := NewWALJournal(dir)
	require.NoError(t, err)

	first, err := j.Record(Entry{
		Status:   StatusExecuted,
		Ticker:   "7203.T",
		Action:   "BUY",
		Quantity: 200,
		Price:    decimal.NewFromInt(1000),
		TradeID:  1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Time.IsZero())

	_, err = j.Record(Entry{
		Status: StatusRejected,
		Ticker: "AAPL",
		Action: "SELL",
		Price:  decimal.NewFromInt(180),
		Error:  "insufficient shares",
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	reopened, err := NewWALJournal(dir)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Records()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, StatusExecuted, entries[0].Status)
	assert.Equal(t, int64(200), entries[0].Quantity)
	assert.True(t, entries[0].Price.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, StatusRejected, entries[1].Status)
	assert.Equal(t, "insufficient shares", entries[1].Error)
}
