package domain

import "github.com/pkg/errors"

var (
	// ErrInsufficientFunds is returned when a buy costs more than the available cash.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientShares is returned when a sell exceeds the held quantity.
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrInvalidQuantity is returned for zero or negative order quantities.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrInvalidPrice is returned for zero or negative prices.
	ErrInvalidPrice = errors.New("price must be greater than zero")
	// ErrInvalidSignal is returned when a signal fails boundary validation.
	ErrInvalidSignal = errors.New("invalid signal")
	// ErrAccountNotOpen is returned when the ledger has no balance row yet.
	ErrAccountNotOpen = errors.New("account is not open")
	// ErrDataUnavailable is returned by price sources that could not produce data.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrRiskHalt is returned when the drawdown circuit breaker is tripped.
	ErrRiskHalt = errors.New("risk halt: drawdown limit breached")
	// ErrStorage wraps failures of the durable ledger.
	ErrStorage = errors.New("ledger storage failure")
	// ErrPositionNotFound is returned when no open position exists for a ticker.
	ErrPositionNotFound = errors.New("position not found")
	// ErrInvariantViolation marks a ledger state that must never be committed.
	ErrInvariantViolation = errors.New("ledger invariant violation")
)

// StorageError wraps a failed ledger read or write. It matches ErrStorage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "ledger " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// ErrorKind classifies errors for callers that branch on the failure class.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindDataUnavailable
	KindRiskHalt
	KindStorage
	KindUnknown
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindDataUnavailable:
		return "data_unavailable"
	case KindRiskHalt:
		return "risk_halt"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// KindOf returns the kind of err by inspecting its wrapped sentinel.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientShares),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrInvalidSignal),
		errors.Is(err, ErrPositionNotFound),
		errors.Is(err, ErrAccountNotOpen):
		return KindValidation
	case errors.Is(err, ErrDataUnavailable):
		return KindDataUnavailable
	case errors.Is(err, ErrRiskHalt):
		return KindRiskHalt
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindUnknown
	}
}
