package backtest

import (
	"sync"

	"github.com/google/uuid"

	"deltastack/internal/errors"
	"deltastack/internal/performance"
)

// WalkForwardParams configure rolling train/test validation of the SMA
// strategy. Each fold grid-searches (fast, slow) on the train window and
// scores the winner on the unseen test window.
type WalkForwardParams struct {
	Ticker    string `json:"ticker"`
	Start     string `json:"start"`
	End       string `json:"end"`
	TrainDays int    `json:"train_days"` // trading days per train window
	TestDays  int    `json:"test_days"`  // trading days per test window
	FastGrid  []int  `json:"fast_grid"`
	SlowGrid  []int  `json:"slow_grid"`
	Workers   int    `json:"workers"` // grid-search parallelism, 0 = NumCPU
}

// Fold is one train/test split with its chosen parameters.
type Fold struct {
	FoldNum     int     `json:"fold_num"`
	TrainStart  string  `json:"train_start"`
	TrainEnd    string  `json:"train_end"`
	TestStart   string  `json:"test_start"`
	TestEnd     string  `json:"test_end"`
	ChosenFast  int     `json:"chosen_fast"`
	ChosenSlow  int     `json:"chosen_slow"`
	TrainSharpe float64 `json:"train_sharpe"`
	TestSharpe  float64 `json:"test_sharpe"`
}

// WalkForwardResult aggregates all folds. TrainTestRatio near 1 means
// in-sample performance carried out of sample.
type WalkForwardResult struct {
	RunID          string  `json:"run_id"`
	Ticker         string  `json:"ticker"`
	NumFolds       int     `json:"num_folds"`
	AvgTrainSharpe float64 `json:"avg_train_sharpe"`
	AvgTestSharpe  float64 `json:"avg_test_sharpe"`
	TrainTestRatio float64 `json:"train_test_ratio"`
	Folds          []Fold  `json:"folds"`
}

type gridScore struct {
	fast, slow int
	sharpe     float64
	ok         bool
}

// RunWalkForward executes walk-forward validation, sliding the split by
// the test window each fold. Grid-search combinations within a fold are
// independent and evaluated on a worker pool.
func (e *Engine) RunWalkForward(p WalkForwardParams) (*WalkForwardResult, error) {
	if p.TrainDays <= 0 || p.TestDays <= 0 {
		return nil, errors.NewValidationError("train_days/test_days", p.TrainDays, "must be positive")
	}
	if len(p.FastGrid) == 0 {
		p.FastGrid = []int{5, 10, 20}
	}
	if len(p.SlowGrid) == 0 {
		p.SlowGrid = []int{30, 50, 100}
	}

	candles, err := e.bars.Load(p.Ticker, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	if len(candles) < p.TrainDays+p.TestDays {
		return nil, errors.NewDataError("bars", p.Ticker, "not enough bars for one fold", errors.ErrDataNotFound)
	}
	dates := make([]string, len(candles))
	for i, c := range candles {
		dates[i] = c.Date
	}

	type combo struct{ fast, slow int }
	var combos []combo
	for _, f := range p.FastGrid {
		for _, s := range p.SlowGrid {
			if f < s {
				combos = append(combos, combo{f, s})
			}
		}
	}
	if len(combos) == 0 {
		return nil, errors.NewValidationError("grid", p.FastGrid, "no fast < slow combination")
	}

	pool := performance.NewWorkerPool(p.Workers)
	pool.Start()
	defer pool.Stop()

	runID := uuid.NewString()
	var folds []Fold

	for cursor, foldNum := 0, 0; cursor+p.TrainDays+p.TestDays <= len(dates); cursor, foldNum = cursor+p.TestDays, foldNum+1 {
		trainStart := dates[cursor]
		trainEnd := dates[cursor+p.TrainDays-1]
		testStart := dates[cursor+p.TrainDays]
		testEndIdx := cursor + p.TrainDays + p.TestDays - 1
		if testEndIdx > len(dates)-1 {
			testEndIdx = len(dates) - 1
		}
		testEnd := dates[testEndIdx]

		scores := make([]gridScore, len(combos))
		var wg sync.WaitGroup
		for i, c := range combos {
			i, c := i, c
			wg.Add(1)
			task := func() {
				defer wg.Done()
				res, err := e.RunSMA(SMAParams{Ticker: p.Ticker, Start: trainStart, End: trainEnd, Fast: c.fast, Slow: c.slow})
				if err != nil {
					scores[i] = gridScore{fast: c.fast, slow: c.slow}
					return
				}
				scores[i] = gridScore{fast: c.fast, slow: c.slow, sharpe: res.SharpeLike, ok: true}
			}
			if !pool.Submit(task) {
				task()
			}
		}
		wg.Wait()

		best := gridScore{fast: combos[0].fast, slow: combos[0].slow, sharpe: -999}
		for _, s := range scores {
			if s.ok && s.sharpe > best.sharpe {
				best = s
			}
		}

		testSharpe := 0.0
		if testRes, err := e.RunSMA(SMAParams{Ticker: p.Ticker, Start: testStart, End: testEnd, Fast: best.fast, Slow: best.slow}); err == nil {
			testSharpe = testRes.SharpeLike
		}

		folds = append(folds, Fold{
			FoldNum:     foldNum,
			TrainStart:  trainStart,
			TrainEnd:    trainEnd,
			TestStart:   testStart,
			TestEnd:     testEnd,
			ChosenFast:  best.fast,
			ChosenSlow:  best.slow,
			TrainSharpe: best.sharpe,
			TestSharpe:  testSharpe,
		})
	}

	if len(folds) == 0 {
		return nil, errors.NewDataError("bars", p.Ticker, "no valid folds could be created", errors.ErrDataNotFound)
	}

	var sumTrain, sumTest float64
	for _, f := range folds {
		sumTrain += f.TrainSharpe
		sumTest += f.TestSharpe
	}
	avgTrain := sumTrain / float64(len(folds))
	avgTest := sumTest / float64(len(folds))
	ratio := 0.0
	if avgTrain != 0 {
		ratio = avgTest / avgTrain
	}

	res := &WalkForwardResult{
		RunID:          runID,
		Ticker:         p.Ticker,
		NumFolds:       len(folds),
		AvgTrainSharpe: avgTrain,
		AvgTestSharpe:  avgTest,
		TrainTestRatio: ratio,
		Folds:          folds,
	}
	e.logger.Info().
		Str("run_id", runID).
		Str("ticker", p.Ticker).
		Int("num_folds", res.NumFolds).
		Float64("avg_test_sharpe", avgTest).
		Msg("walk-forward validation complete")
	return res, nil
}
