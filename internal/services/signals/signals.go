// Package signals loads externally generated trading signals and validates
// them before anything downstream sees them.
package signals

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// Source produces the signals of one cycle.
type Source interface {
	Signals(ctx context.Context) ([]domain.Signal, error)
}

type rawSignal struct {
	Ticker     string  `yaml:"ticker"`
	Action     string  `yaml:"action"`
	Confidence float64 `yaml:"confidence"`
	Reason     string  `yaml:"reason"`
}

type rawFile struct {
	Signals []rawSignal `yaml:"signals"`
}

// Rejected is a raw signal that failed validation.
type Rejected struct {
	Index int
	Err   error
}

// Parse decodes a YAML document with a top-level "signals" list. Invalid
// entries are returned separately and do not fail the whole document.
func Parse(data []byte) ([]domain.Signal, []Rejected, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, errors.Wrap(err, "decode signals")
	}

	var (
		out      []domain.Signal
		rejected []Rejected
	)
	for i, r := range raw.Signals {
		s, err := domain.NewSignal(r.Ticker, r.Action, r.Confidence, r.Reason)
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, Err: err})
			continue
		}
		out = append(out, s)
	}
	return out, rejected, nil
}

// FileSource reads signals from a YAML file on every call. A missing file
// means no signals.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource creates a file-backed signal source.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, logger: logger}
}

// Signals returns the valid signals of the file.
func (s *FileSource) Signals(ctx context.Context) ([]domain.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Debug("no signal file", zap.String("path", s.path))
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read signals %s", s.path)
	}

	out, rejected, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "signals %s", s.path)
	}
	for _, r := range rejected {
		s.logger.Warn("signal rejected", zap.Int("index", r.Index), zap.Error(r.Err))
	}

	return out, nil
}

// Static is a fixed list of signals.
type Static []domain.Signal

// Signals returns the list.
func (s Static) Signals(context.Context) ([]domain.Signal, error) {
	return s, nil
}
