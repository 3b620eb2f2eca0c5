// Package orderjournal keeps an append-only record of every order decision
// taken by the risk gate, including the concrete cause of rejections.
package orderjournal

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultJournalDir      = "./wal/orders"
	journalSegmentLimit    = 1000
	journalMaxSegments     = 100
	orderDecisionKeyPrefix = "order_decision_"
)

// Status is the outcome of one order decision.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusRejected Status = "rejected"
	StatusSkipped  Status = "skipped"
	StatusHalted   Status = "halted"
)

// Entry is one journaled order decision.
type Entry struct {
	ID       string          `json:"id"`
	CycleID  string          `json:"cycle_id,omitempty"`
	Time     time.Time       `json:"time"`
	Status   Status          `json:"status"`
	Ticker   string          `json:"ticker"`
	Action   string          `json:"action"`
	Quantity int64           `json:"quantity,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Reason   string          `json:"reason,omitempty"`
	Error    string          `json:"error,omitempty"`
	TradeID  int64           `json:"trade_id,omitempty"`
}

// WALJournal persists entries in a gowal log.
type WALJournal struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewWALJournal opens the journal under dir.
func NewWALJournal(dir string) (*WALJournal, error) {
	if dir == "" {
		dir = defaultJournalDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create order journal dir")
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "orders_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init order journal WAL")
	}

	return &WALJournal{wal: wal}, nil
}

// Record appends e, assigning an ID and time when they are empty.
func (j *WALJournal) Record(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to marshal order decision")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	if err := j.wal.Write(nextIndex, orderDecisionKeyPrefix+e.ID, data); err != nil {
		return Entry{}, errors.Wrap(err, "failed to write order decision")
	}
	return e, nil
}

// Records returns all journaled entries in write order.
func (j *WALJournal) Records() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var entries []Entry
	for msg := range j.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, orderDecisionKeyPrefix) {
			continue
		}
		var e Entry
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			return nil, errors.Wrapf(err, "decode order decision %s", msg.Key)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the underlying WAL.
func (j *WALJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
