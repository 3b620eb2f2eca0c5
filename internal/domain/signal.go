package domain

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Signal is a validated trading intent consumed by the risk gate.
type Signal struct {
	Ticker     string
	Action     Action
	Confidence decimal.Decimal
	Reason     string
}

// NewSignal builds a signal from loosely typed input and validates it.
func NewSignal(ticker, action string, confidence float64, reason string) (Signal, error) {
	a, err := ParseAction(action)
	if err != nil {
		return Signal{}, err
	}

	s := Signal{
		Ticker:     strings.TrimSpace(ticker),
		Action:     a,
		Confidence: decimal.NewFromFloat(confidence),
		Reason:     strings.TrimSpace(reason),
	}
	if err := s.Validate(); err != nil {
		return Signal{}, err
	}

	return s, nil
}

// Validate checks ticker, action and confidence in (0, 1].
func (s Signal) Validate() error {
	if s.Ticker == "" {
		return errors.Wrap(ErrInvalidSignal, "ticker is required")
	}
	if !s.Action.Valid() {
		return errors.Wrapf(ErrInvalidSignal, "signal for %s has no action", s.Ticker)
	}
	if !s.Confidence.IsPositive() || s.Confidence.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Wrapf(ErrInvalidSignal, "confidence %s for %s is outside (0, 1]",
			s.Confidence.String(), s.Ticker)
	}

	return nil
}
