// Package ledger is the durable store of cash, open positions and the trade log.
// It is the only writer of that state; every mutation runs in one SQLite transaction.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

const defaultBusyTimeout = 5 * time.Second

// Ledger is a SQLite-backed ledger store.
type Ledger struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
	loc    *time.Location
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Ledger) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for dates and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Ledger) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the time zone that defines a calendar date.
func WithLocation(loc *time.Location) Option {
	return func(s *Ledger) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Open opens (or creates) the ledger database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}

	l := &Ledger{
		logger: zap.NewNop(),
		now:    time.Now,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create ledger dir")
	}

	// immediate transactions take the write lock on BEGIN, so read-validate-write
	// cannot interleave with another writer process.
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", fmt.Sprint(defaultBusyTimeout.Milliseconds()))
	dsn := fmt.Sprintf("file:%s?%s", path, q.Encode())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open ledger database")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply ledger schema")
	}

	l.db = db
	return l, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return errors.New("ledger is not initialized")
	}
	return l.db.Close()
}

// today returns the calendar date of the ledger clock.
func (l *Ledger) today() string {
	return l.now().In(l.loc).Format(domain.DateLayout)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside one transaction. Errors returned by fn roll it back unchanged;
// failures to begin or commit are storage errors.
func (l *Ledger) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op+": begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			l.logger.Error("ledger rollback failed", zap.String("op", op), zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr(op+": commit", err)
	}

	return nil
}

func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
