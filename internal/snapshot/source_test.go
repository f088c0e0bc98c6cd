package snapshot

import (
	"reflect"
	"testing"

	"deltastack/internal/errors"
	"deltastack/internal/models"
)

func TestMemorySource_GetAndListTimes(t *testing.T) {
	src := NewMemorySource()
	for _, tm := range []string{"1010", "1000", "1005"} {
		src.Add(&models.ChainSnapshot{Underlying: "SPY", Date: "2025-06-20", Time: tm})
	}
	src.Add(&models.ChainSnapshot{Underlying: "QQQ", Date: "2025-06-20", Time: "0930"})

	times, err := src.ListTimes("SPY", "2025-06-20")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(times, []string{"1000", "1005", "1010"}) {
		t.Fatalf("times = %v, want ascending SPY times only", times)
	}

	snap, err := src.Get("SPY", "2025-06-20", "1005")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Time != "1005" {
		t.Fatalf("snapshot time = %s, want 1005", snap.Time)
	}
}

func TestMemorySource_MissingKey(t *testing.T) {
	src := NewMemorySource()

	_, err := src.Get("SPY", "2025-06-20", "1000")
	if !errors.Is(err, errors.ErrSnapshotNotFound) {
		t.Fatalf("err = %v, want ErrSnapshotNotFound", err)
	}

	times, err := src.ListTimes("SPY", "2025-06-20")
	if err != nil {
		t.Fatal(err)
	}
	if len(times) != 0 {
		t.Fatalf("times = %v, want none", times)
	}
}
