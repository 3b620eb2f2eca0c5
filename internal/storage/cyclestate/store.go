// Package cyclestate keeps the outcome of the last trading cycle on disk.
package cyclestate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Cycle outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeHalted    = "halted"
	OutcomeFailed    = "failed"
)

// State is the summary of one cycle. Money is kept as strings.
type State struct {
	CycleID     string    `json:"cycle_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	Executed    int       `json:"executed"`
	Rejected    int       `json:"rejected"`
	Skipped     int       `json:"skipped"`
	StaleQuotes int       `json:"stale_quotes"`
	Exits       []string  `json:"exits,omitempty"`
	Cash        string    `json:"cash,omitempty"`
	TotalEquity string    `json:"total_equity,omitempty"`
	Drawdown    string    `json:"drawdown"`
}

// Store persists the last State as one JSON file.
type Store struct {
	path string
}

// NewStore creates the parent directory of path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("cycle state path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create cycle state dir")
	}
	return &Store{path: path}, nil
}

// Load returns the last saved state, or nil when no cycle has run yet.
func (s *Store) Load() (*State, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read cycle state")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode cycle state")
	}
	return &state, nil
}

// Save replaces the state atomically via a temp file.
func (s *Store) Save(state State) error {
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode cycle state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write cycle state temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist cycle state")
	}
	return nil
}
