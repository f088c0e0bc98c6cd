package zerodte

import (
	"deltastack/internal/models"
	"deltastack/internal/snapshot"
)

func fp(v float64) *float64 { return &v }

func put(strike, bid, ask float64, delta *float64) models.OptionContract {
	return models.OptionContract{
		Symbol:     "TEST",
		Strike:     strike,
		Type:       models.OptionPut,
		Expiration: "2025-06-20",
		Bid:        fp(bid),
		Ask:        fp(ask),
		Delta:      delta,
		Volume:     500,
	}
}

func chainAt(tm string, contracts ...models.OptionContract) *models.ChainSnapshot {
	return &models.ChainSnapshot{
		Underlying: "SPY",
		Date:       "2025-06-20",
		Time:       tm,
		Contracts:  contracts,
	}
}

func testSource(snaps ...*models.ChainSnapshot) *snapshot.MemorySource {
	src := snapshot.NewMemorySource()
	for _, s := range snaps {
		src.Add(s)
	}
	return src
}

func testParams() StrategyParams {
	return StrategyParams{
		Underlying:         "SPY",
		SpreadType:         models.BullPut,
		TargetDeltaAbs:     0.20,
		Width:              2,
		Contracts:          1,
		Multiplier:         100,
		EntryStart:         "1000",
		EntryEnd:           "1430",
		ForceExit:          "1545",
		ProfitTakePct:      0.50,
		StopLossPct:        1.00,
		SlippagePct:        0,
		IntervalMinutes:    5,
		MaxPositionMinutes: 45,
	}
}
