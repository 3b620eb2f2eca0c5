package equitysnapshots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

func snapshot(date string, equity int64) domain.EquitySnapshot {
	return domain.EquitySnapshot{
		Date:        date,
		Cash:        decimal.NewFromInt(500000),
		TotalEquity: decimal.NewFromInt(equity),
		RecordedAt:  time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
	}
}

func TestWALStore_SaveAndReadAfter(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	idx1, err := store.Save(snapshot("2024-03-01", 1000000))
	require.NoError(t, err)
	idx2, err := store.Save(snapshot("2024-03-02", 1010000))
	require.NoError(t, err)
	assert.Greater(t, idx2, idx1)
	assert.Equal(t, idx2, store.CurrentIndex())

	records, err := store.SnapshotsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-03-01", records[0].Snapshot.Date)
	assert.True(t, records[1].Snapshot.TotalEquity.Equal(decimal.NewFromInt(1010000)))

	records, err = store.SnapshotsAfter(idx1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, idx2, records[0].Index)

	records, err = store.SnapshotsAfter(idx2)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWALStore_LatestCollapsesSameDate(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Save(snapshot("2024-03-02", 990000))
	require.NoError(t, err)
	_, err = store.Save(snapshot("2024-03-01", 1000000))
	require.NoError(t, err)
	_, err = store.Save(snapshot("2024-03-02", 995000))
	require.NoError(t, err)

	latest, err := store.Latest()
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "2024-03-01", latest[0].Date)
	assert.Equal(t, "2024-03-02", latest[1].Date)
	assert.True(t, latest[1].TotalEquity.Equal(decimal.NewFromInt(995000)))
}

func TestWALStore_RequiresDate(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Save(domain.EquitySnapshot{})
	require.Error(t, err)
}
