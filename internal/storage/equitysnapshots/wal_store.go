// Package equitysnapshots streams daily equity snapshots through a WAL so
// external analytics can follow them incrementally.
package equitysnapshots

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

const (
	defaultSnapshotDir   = "./wal/equity"
	snapshotSegmentLimit = 1000
	snapshotMaxSegments  = 100
	snapshotKeyPrefix    = "equity_snapshot_"
)

type walRecord struct {
	Index    uint64                `json:"index"`
	Snapshot domain.EquitySnapshot `json:"snapshot"`
}

// WALStore appends equity snapshots to a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed snapshot stream under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultSnapshotDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create equity snapshot dir")
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "equity_",
		SegmentThreshold: snapshotSegmentLimit,
		MaxSegments:      snapshotMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init equity snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the snapshot and returns its stream index.
func (s *WALStore) Save(snapshot domain.EquitySnapshot) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("equity snapshot store is not initialized")
	}
	if snapshot.Date == "" {
		return 0, fmt.Errorf("equity snapshot date is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	payload, err := json.Marshal(walRecord{Index: nextIndex, Snapshot: snapshot})
	if err != nil {
		return 0, errors.Wrap(err, "marshal equity snapshot")
	}

	key := snapshotKeyPrefix + snapshot.Date
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return 0, errors.Wrap(err, "write equity snapshot")
	}
	return nextIndex, nil
}

// SnapshotsAfter returns every snapshot written after the provided stream index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.EquitySnapshotRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("equity snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wal.CurrentIndex() <= index {
		return nil, nil
	}

	var records []domain.EquitySnapshotRecord
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, snapshotKeyPrefix) {
			continue
		}
		var rec walRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			return nil, errors.Wrap(err, "decode equity snapshot")
		}
		if rec.Index <= index {
			continue
		}
		records = append(records, domain.EquitySnapshotRecord{
			Index:    rec.Index,
			Snapshot: rec.Snapshot,
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	return records, nil
}

// Latest collapses the stream to the last snapshot of every date, oldest date first.
func (s *WALStore) Latest() ([]domain.EquitySnapshot, error) {
	records, err := s.SnapshotsAfter(0)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]domain.EquitySnapshot, len(records))
	for _, r := range records {
		byDate[r.Snapshot.Date] = r.Snapshot
	}

	out := make([]domain.EquitySnapshot, 0, len(byDate))
	for _, snap := range byDate {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("equity snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
