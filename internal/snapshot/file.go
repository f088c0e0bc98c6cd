package snapshot

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

// FileSource reads snapshots from partitioned CSV files written by the
// ingestion pipeline:
//
//	<root>/underlying=<U>/date=<YYYY-MM-DD>/time=<HHMM>/data.csv
type FileSource struct {
	root string
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{root: dir}
}

func (f *FileSource) dir(underlying, date, timeOfDay string) string {
	return filepath.Join(f.root,
		"underlying="+strings.ToUpper(underlying),
		"date="+date,
		"time="+timeOfDay)
}

// Get implements Source. Unreadable or malformed files are reported as
// ErrSnapshotNotFound so that drivers treat them as a missing slot rather
// than aborting the whole sequence.
func (f *FileSource) Get(underlying, date, timeOfDay string) (*models.ChainSnapshot, error) {
	path := filepath.Join(f.dir(underlying, date, timeOfDay), "data.csv")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s %s", errors.ErrSnapshotNotFound, underlying, date, timeOfDay)
	}
	defer file.Close()

	var contracts []models.OptionContract
	if err := gocsv.UnmarshalFile(file, &contracts); err != nil {
		return nil, fmt.Errorf("%w: %s %s %s: corrupt snapshot", errors.ErrSnapshotNotFound, underlying, date, timeOfDay)
	}

	return &models.ChainSnapshot{
		Underlying: strings.ToUpper(underlying),
		Date:       date,
		Time:       timeOfDay,
		Contracts:  contracts,
	}, nil
}

// ListTimes implements Source by scanning the day's time= partitions.
func (f *FileSource) ListTimes(underlying, date string) ([]string, error) {
	dayDir := filepath.Join(f.root,
		"underlying="+strings.ToUpper(underlying),
		"date="+date)
	entries, err := os.ReadDir(dayDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing snapshot times: %w", err)
	}

	var times []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "time=") {
			continue
		}
		times = append(times, strings.TrimPrefix(name, "time="))
	}
	sort.Strings(times)
	return times, nil
}
