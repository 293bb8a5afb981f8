package betmath_test

import (
	"math"
	"testing"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/betmath"
)

func TestAmericanToDecimal(t *testing.T) {
	tests := []struct {
		name       string
		american   int
		want       float64
		shouldFail bool
	}{
		{name: "Plus 150", american: 150, want: 2.50},
		{name: "Minus 150", american: -150, want: 1.6667},
		{name: "Minus 110", american: -110, want: 1.9091},
		{name: "Even money plus 100", american: 100, want: 2.00},
		{name: "Zero is invalid", american: 0, shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := betmath.AmericanToDecimal(tt.american)

			if tt.shouldFail {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("AmericanToDecimal(%d) = %f, want %f", tt.american, got, tt.want)
			}
		})
	}
}

func TestDecimalToAmerican(t *testing.T) {
	tests := []struct {
		name       string
		decimal    float64
		want       int
		shouldFail bool
	}{
		{name: "2.50 is plus 150", decimal: 2.50, want: 150},
		{name: "1.91 is minus 110", decimal: 1.9091, want: -110},
		{name: "2.00 is plus 100", decimal: 2.00, want: 100},
		{name: "At 1.0 is invalid", decimal: 1.0, shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := betmath.DecimalToAmerican(tt.decimal)

			if tt.shouldFail {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecimalToAmerican(%f) = %d, want %d", tt.decimal, got, tt.want)
			}
		})
	}
}

func TestImpliedProbability(t *testing.T) {
	got, err := betmath.ImpliedProbability(2.00)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-0.50) > 1e-9 {
		t.Errorf("ImpliedProbability(2.00) = %f, want 0.50", got)
	}

	if _, err := betmath.ImpliedProbability(0.5); err == nil {
		t.Error("expected error for decimal <= 1")
	}
}

func TestRemoveVig(t *testing.T) {
	// Standard -110/-110 market, ~4.76% vig.
	fair1, fair2, err := betmath.RemoveVig(0.5238, 0.5238)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(fair1-0.50) > 0.001 || math.Abs(fair2-0.50) > 0.001 {
		t.Errorf("RemoveVig = %f/%f, want 0.50/0.50", fair1, fair2)
	}
	if math.Abs(fair1+fair2-1.0) > 1e-9 {
		t.Errorf("fair probabilities sum to %f, want 1.0", fair1+fair2)
	}

	// Fair market passes through untouched.
	fair1, fair2, err = betmath.RemoveVig(0.60, 0.40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fair1 != 0.60 || fair2 != 0.40 {
		t.Errorf("RemoveVig on fair market = %f/%f, want passthrough", fair1, fair2)
	}

	if _, _, err := betmath.RemoveVig(1.2, 0.5); err == nil {
		t.Error("expected error for probability >= 1")
	}
}
