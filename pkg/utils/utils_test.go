package utils

import (
	"testing"
	"time"
)

func TestClockMinutes(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0000", 0, false},
		{"0930", 570, false},
		{"1545", 945, false},
		{"2359", 1439, false},
		{"2400", 0, true},
		{"0960", 0, true},
		{"930", 0, true},
		{"ab30", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ClockMinutes(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ClockMinutes(%q) accepted", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ClockMinutes(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ClockMinutes(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMinutesBetween(t *testing.T) {
	got, err := MinutesBetween("1000", "1545")
	if err != nil {
		t.Fatal(err)
	}
	if got != 345 {
		t.Fatalf("MinutesBetween = %d, want 345", got)
	}

	got, err = MinutesBetween("1545", "1000")
	if err != nil {
		t.Fatal(err)
	}
	if got != -345 {
		t.Fatalf("reverse MinutesBetween = %d, want -345", got)
	}
}

func TestValidDate(t *testing.T) {
	if !ValidDate("2025-06-20") {
		t.Error("2025-06-20 rejected")
	}
	for _, bad := range []string{"2025-13-01", "20250620", "2025-06-20T10:00", ""} {
		if ValidDate(bad) {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestIsMarketHours(t *testing.T) {
	// A Friday at 10:30 New York time.
	friday := time.Date(2025, 6, 20, 14, 30, 0, 0, time.UTC)
	if !IsMarketHours(friday, "America/New_York", "0930", "1600") {
		t.Error("Friday mid-session reported closed")
	}

	saturday := time.Date(2025, 6, 21, 14, 30, 0, 0, time.UTC)
	if IsMarketHours(saturday, "America/New_York", "0930", "1600") {
		t.Error("Saturday reported open")
	}

	afterClose := time.Date(2025, 6, 20, 21, 30, 0, 0, time.UTC)
	if IsMarketHours(afterClose, "America/New_York", "0930", "1600") {
		t.Error("after close reported open")
	}
}

func TestFormatCurrency(t *testing.T) {
	if got := FormatCurrency(1234.5); got != "$1234.50" {
		t.Errorf("got %q", got)
	}
	if got := FormatCurrency(-42.125); got != "-$42.13" {
		t.Errorf("got %q", got)
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(0.0525); got != "+5.25%" {
		t.Errorf("got %q", got)
	}
	if got := FormatPercent(-0.1); got != "-10.00%" {
		t.Errorf("got %q", got)
	}
}

func TestRound(t *testing.T) {
	if got := Round(1.23456, 2); got != 1.23 {
		t.Errorf("got %v", got)
	}
	if got := Round(3.14159, 3); got != 3.142 {
		t.Errorf("got %v", got)
	}
}
