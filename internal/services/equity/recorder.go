// Package equity records the daily equity snapshot.
package equity

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

type snapshotter interface {
	RecordSnapshot(ctx context.Context) (domain.EquitySnapshot, error)
}

// Stream receives every recorded snapshot for external consumers.
type Stream interface {
	Save(snapshot domain.EquitySnapshot) (uint64, error)
}

// Recorder writes one snapshot per calendar date.
type Recorder struct {
	ledger snapshotter
	stream Stream
	logger *zap.Logger
}

// NewRecorder creates a recorder. stream may be nil.
func NewRecorder(l snapshotter, stream Stream, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{ledger: l, stream: stream, logger: logger}
}

// RecordToday recomputes today's equity from the ledger and overwrites today's
// snapshot. Calling it again on the same date never adds a row.
// A failure to publish to the stream is logged and does not fail the call.
func (r *Recorder) RecordToday(ctx context.Context) (domain.EquitySnapshot, error) {
	snap, err := r.ledger.RecordSnapshot(ctx)
	if err != nil {
		return domain.EquitySnapshot{}, errors.Wrap(err, "record equity snapshot")
	}

	r.logger.Info("equity snapshot recorded",
		zap.String("date", snap.Date),
		zap.Stringer("cash", snap.Cash),
		zap.Stringer("total_equity", snap.TotalEquity),
	)

	if r.stream == nil {
		return snap, nil
	}
	if _, err := r.stream.Save(snap); err != nil {
		r.logger.Warn("failed to publish equity snapshot", zap.String("date", snap.Date), zap.Error(err))
	}

	return snap, nil
}
