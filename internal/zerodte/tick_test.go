package zerodte

import (
	"math"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"deltastack/internal/models"
)

func TestEvaluate_BuyUsesNearestSnapshotAtOrBefore(t *testing.T) {
	src := testSource(
		chainAt("1000",
			put(580, 1.20, 1.30, fp(-0.20)),
			put(578, 0.55, 0.65, nil),
		),
		chainAt("1030", put(580, 0.10, 0.20, fp(-0.05))),
	)
	ev := NewTickEvaluator(src, zerolog.Nop())

	d, err := ev.Evaluate(testDate, "1003", testParams())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.IsBuy() {
		t.Fatalf("decision = %q reason = %q, want BUY", d.Decision, d.Reason)
	}
	if d.SnapshotTime != "1000" {
		t.Errorf("snapshot time = %s, want 1000", d.SnapshotTime)
	}
	if d.Signal != models.SignalOpenSpread {
		t.Errorf("signal = %q, want OPEN_SPREAD", d.Signal)
	}
	if d.ShortStrike != 580 || d.LongStrike != 578 {
		t.Errorf("strikes = %.0f/%.0f, want 580/578", d.ShortStrike, d.LongStrike)
	}
	if math.Abs(d.Credit-0.65) > 1e-9 {
		t.Errorf("credit = %.4f, want 0.65", d.Credit)
	}
	if math.Abs(d.MaxLoss-1.35) > 1e-9 {
		t.Errorf("max loss = %.4f, want 1.35", d.MaxLoss)
	}
}

func TestEvaluate_SkipOutcomes(t *testing.T) {
	src := testSource(chainAt("1000")) // empty chain at 1000
	ev := NewTickEvaluator(src, zerolog.Nop())

	tests := []struct {
		name string
		tick string
		want models.SkipReason
	}{
		{"outside window", "0930", models.SkipOutsideWindow},
		{"empty chain exact match", "1000", models.SkipEmptyChain},
		{"empty chain via nearest", "1015", models.SkipEmptyChain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ev.Evaluate(testDate, tt.tick, testParams())
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if d.Decision != models.DecisionSkip || d.Reason != tt.want {
				t.Errorf("decision/reason = %q/%q, want skip/%q", d.Decision, d.Reason, tt.want)
			}
		})
	}
}

func TestEvaluate_NoSnapshotAtOrBefore(t *testing.T) {
	src := testSource(chainAt("1100", put(580, 1.20, 1.30, fp(-0.20))))
	ev := NewTickEvaluator(src, zerolog.Nop())

	d, err := ev.Evaluate(testDate, "1030", testParams())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Reason != models.SkipNoSnapshot {
		t.Errorf("reason = %q, want no_snapshot_available", d.Reason)
	}
}

func TestEvaluate_IsStateless(t *testing.T) {
	src := testSource(chainAt("1000",
		put(580, 1.20, 1.30, fp(-0.20)),
		put(578, 0.55, 0.65, nil),
	))
	ev := NewTickEvaluator(src, zerolog.Nop())

	first, err := ev.Evaluate(testDate, "1005", testParams())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	second, err := ev.Evaluate(testDate, "1005", testParams())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated evaluation differs:\n%+v\n%+v", first, second)
	}
}
