// Package spread implements contract selection and pricing for two-leg
// vertical credit spreads.
package spread

import (
	"math"
	"sort"
	"time"

	"deltastack/internal/models"
)

// Candidate is a liquidity-filtered contract with its computed mid price.
type Candidate struct {
	Contract models.OptionContract
	Mid      float64
}

// Leg returns the candidate as a spread leg.
func (c Candidate) Leg() models.SpreadLeg {
	return models.SpreadLeg{Strike: c.Contract.Strike, Mid: c.Mid}
}

// ExpiryFilter restricts a chain to the expiration the strategy trades.
type ExpiryFilter struct {
	sameDay   string
	asOf      string
	targetDTE int
}

// SameDayExpiry keeps only contracts expiring on the given date (0DTE).
func SameDayExpiry(date string) ExpiryFilter {
	return ExpiryFilter{sameDay: date}
}

// NearestDTE keeps only contracts on the single expiration whose days to
// expiry is closest to target, counted from asOf. Expirations at or
// before asOf are excluded.
func NearestDTE(asOf string, target int) ExpiryFilter {
	return ExpiryFilter{asOf: asOf, targetDTE: target}
}

// SelectParams are the contract-selection inputs.
type SelectParams struct {
	OptionType     models.OptionType
	Expiry         ExpiryFilter
	TargetDeltaAbs float64
	MinVolume      int64
	MaxBidAskPct   float64
}

// Selection is a successful short-leg choice plus the candidate pool the
// long leg must be drawn from.
type Selection struct {
	Short Candidate
	Pool  []Candidate
}

// Select picks the short leg of a credit spread from a snapshot. It
// returns a non-empty skip reason instead of an error when the chain
// offers nothing tradeable: selection failure is an expected business
// outcome, not a fault.
func Select(snap *models.ChainSnapshot, params SelectParams) (*Selection, models.SkipReason) {
	// Type and expiration filters.
	var typed []models.OptionContract
	for _, c := range snap.Contracts {
		if c.Type == params.OptionType {
			typed = append(typed, c)
		}
	}
	typed = params.Expiry.apply(typed)
	if len(typed) == 0 {
		return nil, models.SkipEmptyChain
	}

	pool := filterLiquidity(typed, params.MinVolume, params.MaxBidAskPct)
	if len(pool) == 0 {
		return nil, models.SkipNoLiquidity
	}

	short := pickShortLeg(pool, params.OptionType, params.TargetDeltaAbs)
	return &Selection{Short: short, Pool: pool}, ""
}

// filterLiquidity drops contracts failing the volume and bid-ask width
// filters, then drops non-positive mids. The volume filter only applies
// when the feed reports volume at all (any contract with volume > 0);
// the bid-ask filter only applies to contracts quoting both sides.
func filterLiquidity(contracts []models.OptionContract, minVolume int64, maxBidAskPct float64) []Candidate {
	volumeReported := false
	for _, c := range contracts {
		if c.Volume > 0 {
			volumeReported = true
			break
		}
	}

	var pool []Candidate
	for _, c := range contracts {
		if volumeReported && minVolume > 0 && c.Volume < minVolume {
			continue
		}
		if pct, ok := c.BidAskPct(); ok && maxBidAskPct > 0 && pct > maxBidAskPct {
			continue
		}
		mid := c.Mid()
		if mid <= 0 {
			continue
		}
		pool = append(pool, Candidate{Contract: c, Mid: mid})
	}
	return pool
}

// pickShortLeg selects the candidate closest to the target absolute
// delta, ties broken by lowest strike. When no candidate reports a
// delta, it falls back to a strike-percentile heuristic: candidates are
// sorted most-OTM-adjacent first (ascending strikes for puts, descending
// for calls) and the leg at index floor(len * target) is taken. The
// fallback approximates moneyness by strike rank only; it does not model
// true option sensitivity.
func pickShortLeg(pool []Candidate, optType models.OptionType, targetDeltaAbs float64) Candidate {
	anyDelta := false
	for _, c := range pool {
		if c.Contract.HasDelta() {
			anyDelta = true
			break
		}
	}

	if anyDelta {
		best := -1
		bestDiff := math.Inf(1)
		for i, c := range pool {
			if !c.Contract.HasDelta() {
				continue
			}
			diff := math.Abs(c.Contract.AbsDelta() - targetDeltaAbs)
			if best == -1 || diff < bestDiff || (diff == bestDiff && c.Contract.Strike < pool[best].Contract.Strike) {
				best = i
				bestDiff = diff
			}
		}
		return pool[best]
	}

	sorted := make([]Candidate, len(pool))
	copy(sorted, pool)
	sort.Slice(sorted, func(i, j int) bool {
		if optType == models.OptionPut {
			return sorted[i].Contract.Strike < sorted[j].Contract.Strike
		}
		return sorted[i].Contract.Strike > sorted[j].Contract.Strike
	})
	idx := int(float64(len(sorted)) * targetDeltaAbs)
	if idx < 0 {
		idx = 0
	}
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (f ExpiryFilter) apply(contracts []models.OptionContract) []models.OptionContract {
	if f.sameDay != "" {
		var out []models.OptionContract
		for _, c := range contracts {
			if c.Expiration == f.sameDay {
				out = append(out, c)
			}
		}
		return out
	}

	asOf, err := time.Parse("2006-01-02", f.asOf)
	if err != nil {
		return nil
	}

	// Choose the expiration with days-to-expiry closest to target.
	bestExp := ""
	bestDiff := math.MaxInt32
	for _, c := range contracts {
		exp, err := time.Parse("2006-01-02", c.Expiration)
		if err != nil {
			continue
		}
		dte := int(exp.Sub(asOf).Hours() / 24)
		if dte <= 0 {
			continue
		}
		diff := dte - f.targetDTE
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff || (diff == bestDiff && c.Expiration < bestExp) {
			bestExp = c.Expiration
			bestDiff = diff
		}
	}
	if bestExp == "" {
		return nil
	}

	var out []models.OptionContract
	for _, c := range contracts {
		if c.Expiration == bestExp {
			out = append(out, c)
		}
	}
	return out
}
