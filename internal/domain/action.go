package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// Action represents the side of a trade or signal.
type Action int

const (
	ActionBuy Action = iota + 1
	ActionSell
)

// action string constants to avoid magic strings
const (
	actionStringBuy  = "BUY"
	actionStringSell = "SELL"
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionBuy:
		return actionStringBuy
	case ActionSell:
		return actionStringSell
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// ParseAction converts "buy"/"sell" (any case) into an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case actionStringBuy:
		return ActionBuy, nil
	case actionStringSell:
		return ActionSell, nil
	}
	return 0, errors.Wrapf(ErrInvalidSignal, "unknown action %q", s)
}
