// Package bars provides read-only access to stored daily OHLCV bars.
package bars

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"deltastack/internal/errors"
	"deltastack/internal/models"
)

// Store reads daily bars from one CSV file per ticker:
//
//	<root>/<TICKER>.csv with columns date,open,high,low,close,volume
type Store struct {
	root string
}

// NewStore creates a bar store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Load returns bars for ticker within [start, end] (inclusive, both
// "2006-01-02"; empty bounds mean unbounded), sorted by date ascending.
func (s *Store) Load(ticker, start, end string) ([]models.Candle, error) {
	path := filepath.Join(s.root, strings.ToUpper(ticker)+".csv")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: no bars for %s", errors.ErrDataNotFound, ticker)
	}
	defer file.Close()

	var candles []models.Candle
	if err := gocsv.UnmarshalFile(file, &candles); err != nil {
		return nil, errors.NewDataError("bars", ticker, "parsing bar file", err)
	}

	filtered := candles[:0]
	for _, c := range candles {
		if start != "" && c.Date < start {
			continue
		}
		if end != "" && c.Date > end {
			continue
		}
		filtered = append(filtered, c)
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Date < filtered[j].Date })
	return filtered, nil
}

// LastClose returns the most recent close for ticker.
func (s *Store) LastClose(ticker string) (float64, error) {
	candles, err := s.Load(ticker, "", "")
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("%w: no bars for %s", errors.ErrDataNotFound, ticker)
	}
	return candles[len(candles)-1].Close, nil
}
