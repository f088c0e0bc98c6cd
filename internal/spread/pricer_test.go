package spread

import (
	"math"
	"testing"

	"deltastack/internal/models"
)

func candidatePool(strikes ...float64) []Candidate {
	var pool []Candidate
	for _, s := range strikes {
		pool = append(pool, Candidate{
			Contract: models.OptionContract{Strike: s, Type: models.OptionPut},
			Mid:      1.0,
		})
	}
	return pool
}

func TestLongLeg(t *testing.T) {
	tests := []struct {
		name        string
		pool        []Candidate
		shortStrike float64
		width       float64
		optType     models.OptionType
		wantStrike  float64
		wantFound   bool
	}{
		{
			name:        "exact put target",
			pool:        candidatePool(576, 578, 580),
			shortStrike: 580, width: 2, optType: models.OptionPut,
			wantStrike: 578, wantFound: true,
		},
		{
			name:        "nearest within tolerance",
			pool:        candidatePool(577.5, 580),
			shortStrike: 580, width: 2, optType: models.OptionPut,
			wantStrike: 577.5, wantFound: true,
		},
		{
			name:        "call target above short",
			pool:        candidatePool(600, 602, 604),
			shortStrike: 600, width: 2, optType: models.OptionCall,
			wantStrike: 602, wantFound: true,
		},
		{
			name:        "nothing within tolerance",
			pool:        candidatePool(570, 580),
			shortStrike: 580, width: 2, optType: models.OptionPut,
			wantFound: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leg, found := LongLeg(tt.pool, tt.shortStrike, tt.width, tt.optType, DefaultStrikeTolerance)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if found && leg.Strike != tt.wantStrike {
				t.Errorf("strike = %.1f, want %.1f", leg.Strike, tt.wantStrike)
			}
		})
	}
}

func TestPrice(t *testing.T) {
	short := models.SpreadLeg{Strike: 580, Mid: 1.25}
	long := models.SpreadLeg{Strike: 578, Mid: 0.60}

	q := Price(short, long, 0)
	if math.Abs(q.Credit-0.65) > 1e-12 {
		t.Errorf("credit = %.4f, want 0.65", q.Credit)
	}
	if math.Abs(q.MaxLoss-1.35) > 1e-12 {
		t.Errorf("max loss = %.4f, want 1.35", q.MaxLoss)
	}

	q = Price(short, long, 0.01)
	if math.Abs(q.Credit-0.6435) > 1e-12 {
		t.Errorf("credit with slippage = %.6f, want 0.6435", q.Credit)
	}

	// Inverted mids produce a negative credit; the caller treats that as
	// a no_credit skip, not an error.
	q = Price(models.SpreadLeg{Strike: 580, Mid: 0.60}, models.SpreadLeg{Strike: 578, Mid: 0.65}, 0)
	if q.Credit >= 0 {
		t.Errorf("credit = %.4f, want negative", q.Credit)
	}
}

func TestMarkSpread(t *testing.T) {
	bid := func(v float64) *float64 { return &v }
	snap := &models.ChainSnapshot{
		Date: "2025-06-20",
		Contracts: []models.OptionContract{
			{Strike: 580, Type: models.OptionPut, Bid: bid(0.75), Ask: bid(0.85)},
			{Strike: 578, Type: models.OptionPut, Bid: bid(0.30), Ask: bid(0.40)},
		},
	}

	v, ok := MarkSpread(snap, models.OptionPut, 580, 578, DefaultStrikeTolerance)
	if !ok {
		t.Fatal("expected quotable marks")
	}
	if math.Abs(v-0.45) > 1e-12 {
		t.Errorf("value = %.4f, want 0.45", v)
	}

	// Slightly drifted strikes still match within tolerance.
	v, ok = MarkSpread(snap, models.OptionPut, 580.4, 577.8, DefaultStrikeTolerance)
	if !ok || math.Abs(v-0.45) > 1e-12 {
		t.Errorf("tolerance match = (%.4f, %v), want (0.45, true)", v, ok)
	}

	if _, ok := MarkSpread(snap, models.OptionPut, 590, 588, DefaultStrikeTolerance); ok {
		t.Error("expected unquotable marks for absent strikes")
	}
}
