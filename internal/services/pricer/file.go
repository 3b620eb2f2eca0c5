package pricer

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

var requiredColumns = []string{"date", "open", "high", "low", "close"}

// FileSource reads daily candles from <dir>/<ticker>.csv with a
// date,open,high,low,close header. Extra columns are ignored.
// The latest price is the close of the last row.
type FileSource struct {
	dir string
}

// NewFileSource creates a source over the CSV files in dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// GetLatestPrice returns the last close of ticker.
func (s *FileSource) GetLatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	candles, err := s.load(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	return candles[len(candles)-1].Close, nil
}

// GetRecentRange returns up to window most recent candles, oldest first.
func (s *FileSource) GetRecentRange(ctx context.Context, ticker string, window int) ([]domain.Candle, error) {
	candles, err := s.load(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if window > 0 && len(candles) > window {
		candles = candles[len(candles)-window:]
	}
	return candles, nil
}

func (s *FileSource) load(ctx context.Context, ticker string) ([]domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ticker == "" || strings.ContainsAny(ticker, `/\`) {
		return nil, errors.Wrapf(ErrUnknownTicker, "invalid ticker %q", ticker)
	}

	f, err := os.Open(filepath.Join(s.dir, ticker+".csv"))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrUnknownTicker, "no price file for %s", ticker)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open price file for %s", ticker)
	}
	defer f.Close()

	candles, err := parseCandles(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse price file for %s", ticker)
	}
	if len(candles) == 0 {
		return nil, errors.Wrapf(ErrUnknownTicker, "price file for %s has no rows", ticker)
	}
	return candles, nil
}

func parseCandles(r io.Reader) ([]domain.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, errors.Errorf("missing column %q", c)
		}
	}

	var candles []domain.Candle
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		ts, err := time.Parse(domain.DateLayout, rec[cols["date"]])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: date", line)
		}
		c := domain.Candle{Time: ts}
		for _, field := range []struct {
			name string
			dst  *decimal.Decimal
		}{
			{"open", &c.Open}, {"high", &c.High}, {"low", &c.Low}, {"close", &c.Close},
		} {
			v, err := decimal.NewFromString(rec[cols[field.name]])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: %s", line, field.name)
			}
			*field.dst = v
		}
		candles = append(candles, c)
	}

	return candles, nil
}
