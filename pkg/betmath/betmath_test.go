package betmath_test

import (
	"math"
	"testing"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/betmath"
)

func TestKellyFraction(t *testing.T) {
	tests := []struct {
		name       string
		p          float64
		b          float64
		cap        float64
		want       float64
		shouldFail bool
	}{
		{
			name: "10% edge at even odds",
			p:    0.55,
			b:    2.00,
			cap:  0.5,
			want: 0.10,
		},
		{
			name: "Edge on an underdog price",
			p:    0.40,
			b:    3.50,
			cap:  0.5,
			want: 0.16, // (0.40*2.5 - 0.60) / 2.5
		},
		{
			name: "No edge clamps to zero",
			p:    0.45,
			b:    2.00,
			cap:  0.5,
			want: 0,
		},
		{
			name: "Huge edge clamps to cap",
			p:    0.95,
			b:    3.00,
			cap:  0.5,
			want: 0.5,
		},
		{
			name: "Custom lower cap",
			p:    0.95,
			b:    3.00,
			cap:  0.25,
			want: 0.25,
		},
		{
			name:       "Probability above 1",
			p:          1.2,
			b:          2.00,
			cap:        0.5,
			shouldFail: true,
		},
		{
			name:       "Negative probability",
			p:          -0.1,
			b:          2.00,
			cap:        0.5,
			shouldFail: true,
		},
		{
			name:       "Odds at 1.0",
			p:          0.5,
			b:          1.0,
			cap:        0.5,
			shouldFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := betmath.KellyFraction(tt.p, tt.b, tt.cap)

			if tt.shouldFail {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("KellyFraction = %f, want %f", got, tt.want)
			}
		})
	}
}

// Kelly must stay within [0, cap] across the whole valid input range.
func TestKellyFractionBounds(t *testing.T) {
	const cap = 0.5

	for p := 0.0; p <= 1.0; p += 0.05 {
		for b := 1.01; b < 12.0; b += 0.37 {
			f, err := betmath.KellyFraction(p, b, cap)
			if err != nil {
				t.Fatalf("KellyFraction(%f, %f) error: %v", p, b, err)
			}
			if f < 0 || f > cap {
				t.Fatalf("KellyFraction(%f, %f) = %f out of [0, %f]", p, b, f, cap)
			}
		}
	}
}

func TestExpectedValue(t *testing.T) {
	tests := []struct {
		name  string
		p     float64
		b     float64
		stake float64
		want  float64
	}{
		{
			name:  "Positive EV",
			p:     0.55,
			b:     2.00,
			stake: 100,
			want:  10,
		},
		{
			name:  "Negative EV",
			p:     0.45,
			b:     2.00,
			stake: 100,
			want:  -10,
		},
		{
			name:  "Fair coin at fair odds",
			p:     0.50,
			b:     2.00,
			stake: 50,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := betmath.ExpectedValue(tt.p, tt.b, tt.stake)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ExpectedValue = %f, want %f", got, tt.want)
			}
		})
	}

	if _, err := betmath.ExpectedValue(1.5, 2.0, 100); err == nil {
		t.Error("expected error for p > 1")
	}
}

func TestWinRateAndROI(t *testing.T) {
	if got := betmath.WinRate(62, 100); math.Abs(got-0.62) > 1e-9 {
		t.Errorf("WinRate(62, 100) = %f, want 0.62", got)
	}
	if got := betmath.WinRate(0, 0); got != 0 {
		t.Errorf("WinRate(0, 0) = %f, want 0", got)
	}

	if got := betmath.ROI(150, 1000); math.Abs(got-0.15) > 1e-9 {
		t.Errorf("ROI(150, 1000) = %f, want 0.15", got)
	}
	if got := betmath.ROI(150, 0); got != 0 {
		t.Errorf("ROI(150, 0) = %f, want 0", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name  string
		curve []float64
		want  float64
	}{
		{
			name:  "Empty curve",
			curve: nil,
			want:  0,
		},
		{
			name:  "Monotonic increase",
			curve: []float64{100, 110, 125, 140},
			want:  0,
		},
		{
			name:  "Single 20% dip",
			curve: []float64{100, 120, 96, 130},
			want:  0.20,
		},
		{
			name:  "Deepest of two dips wins",
			curve: []float64{100, 90, 110, 77, 120},
			want:  0.30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := betmath.MaxDrawdown(tt.curve)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MaxDrawdown = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSharpeRatio(t *testing.T) {
	// Identical returns have zero variance: must be 0, not NaN.
	got := betmath.SharpeRatio([]float64{0.05, 0.05, 0.05}, 0)
	if got != 0 {
		t.Errorf("SharpeRatio with zero stddev = %f, want 0", got)
	}

	got = betmath.SharpeRatio([]float64{0.10, -0.10}, 0)
	if math.Abs(got) > 1e-9 {
		t.Errorf("SharpeRatio of symmetric returns = %f, want 0", got)
	}

	// mean=0.05, population stddev=0.05 -> sharpe 1.0
	got = betmath.SharpeRatio([]float64{0.0, 0.10}, 0)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("SharpeRatio = %f, want 1.0", got)
	}
}

func TestCLV(t *testing.T) {
	// Bet at 2.10, market closed 1.95: bettor beat the close.
	got, err := betmath.CLV(2.10, 1.95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 1.0/1.95 - 1.0/2.10
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("CLV = %f, want %f", got, want)
	}
	if got <= 0 {
		t.Errorf("CLV = %f, want positive (beat the close)", got)
	}

	// Line moved against the bettor.
	got, err = betmath.CLV(1.90, 2.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got >= 0 {
		t.Errorf("CLV = %f, want negative", got)
	}

	if _, err := betmath.CLV(1.0, 2.0); err == nil {
		t.Error("expected error for odds <= 1")
	}
}
