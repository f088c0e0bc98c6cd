package indicators

import (
	"math"
	"testing"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := SMA(values, 3)

	for i := 0; i < 2; i++ {
		if !math.IsNaN(got[i]) {
			t.Fatalf("got[%d] = %v, want NaN warmup", i, got[i])
		}
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if math.Abs(got[i+2]-w) > 1e-9 {
			t.Fatalf("got[%d] = %v, want %v", i+2, got[i+2], w)
		}
	}
}

func TestSMA_ShortSeriesAllNaN(t *testing.T) {
	got := SMA([]float64{1, 2}, 5)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Fatalf("got[%d] = %v, want NaN", i, v)
		}
	}
}

func TestEMA_SeededWithSMA(t *testing.T) {
	values := []float64{2, 4, 6, 8}
	got := EMA(values, 3)

	if math.Abs(got[2]-4) > 1e-9 {
		t.Fatalf("seed = %v, want 4", got[2])
	}
	// k = 0.5 for period 3: (8-4)*0.5 + 4 = 6
	if math.Abs(got[3]-6) > 1e-9 {
		t.Fatalf("got[3] = %v, want 6", got[3])
	}
}

func TestCrossover(t *testing.T) {
	fast := []float64{math.NaN(), 1, 3, 3, 1}
	slow := []float64{math.NaN(), 2, 2, 2, 2}

	got := Crossover(fast, slow)
	want := []int{0, 0, 1, 0, -1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cross[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSMA_ConstantSeries(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 7.5
	}

	got := SMA(values, 10)
	for i := 9; i < len(got); i++ {
		if math.Abs(got[i]-7.5) > 1e-9 {
			t.Fatalf("got[%d] = %v, want 7.5", i, got[i])
		}
	}
}
