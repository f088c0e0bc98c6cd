package spread

import (
	"math"

	"deltastack/internal/models"
)

// DefaultStrikeTolerance bounds strike matching. Stored strikes can carry
// floating-point noise from upstream ingestion, so strike comparisons are
// tolerance-bounded rather than exact.
const DefaultStrikeTolerance = 1.0

// LongLeg finds the protective long leg in the candidate pool: the strike
// nearest to shortStrike-width for puts (bull put) or shortStrike+width
// for calls (bear call), within tolerance. Returns false when no
// candidate lies within tolerance of the target.
func LongLeg(pool []Candidate, shortStrike, width float64, optType models.OptionType, tolerance float64) (models.SpreadLeg, bool) {
	target := shortStrike - width
	if optType == models.OptionCall {
		target = shortStrike + width
	}
	if tolerance <= 0 {
		tolerance = DefaultStrikeTolerance
	}

	best := -1
	bestDist := math.Inf(1)
	for i, c := range pool {
		dist := math.Abs(c.Contract.Strike - target)
		if dist > tolerance {
			continue
		}
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	if best == -1 {
		return models.SpreadLeg{}, false
	}
	return pool[best].Leg(), true
}

// Quote is the priced spread at entry: per-share credit after slippage
// and the corresponding per-share max loss.
type Quote struct {
	Credit  float64
	MaxLoss float64
}

// Price computes the entry economics of a vertical credit spread.
// Slippage reduces the credit received. A non-positive credit is a valid
// business outcome (the caller rejects entry with no_credit); it is not
// an error.
func Price(short, long models.SpreadLeg, slippagePct float64) Quote {
	credit := (short.Mid - long.Mid) * (1 - slippagePct)
	return Quote{
		Credit:  credit,
		MaxLoss: math.Abs(short.Strike-long.Strike) - credit,
	}
}

// MarkSpread revalues an open spread against the current snapshot. Both
// legs are re-located by strike within tolerance; liquidity filters do
// not apply to marking. Returns false when either leg is no longer
// quotable, in which case the caller falls back to the entry credit (no
// re-pricing) - a documented approximation.
func MarkSpread(snap *models.ChainSnapshot, optType models.OptionType, shortStrike, longStrike, tolerance float64) (float64, bool) {
	shortMid, okShort := midAtStrike(snap, optType, shortStrike, tolerance)
	longMid, okLong := midAtStrike(snap, optType, longStrike, tolerance)
	if !okShort || !okLong {
		return 0, false
	}
	return shortMid - longMid, true
}

func midAtStrike(snap *models.ChainSnapshot, optType models.OptionType, strike, tolerance float64) (float64, bool) {
	if tolerance <= 0 {
		tolerance = DefaultStrikeTolerance
	}
	best := -1
	bestDist := math.Inf(1)
	for i := range snap.Contracts {
		c := &snap.Contracts[i]
		if c.Type != optType {
			continue
		}
		dist := math.Abs(c.Strike - strike)
		if dist > tolerance || dist >= bestDist {
			continue
		}
		if c.Mid() <= 0 {
			continue
		}
		best = i
		bestDist = dist
	}
	if best == -1 {
		return 0, false
	}
	return snap.Contracts[best].Mid(), true
}
