// Package betmath provides the pure numeric core of the analytics engine:
// Kelly sizing, expected value, and realized-performance statistics.
// All functions are stateless.
package betmath

import (
	"errors"
	"math"
)

// ErrInvalidInput is returned for arguments outside a function's numeric
// contract (probability outside [0,1], decimal odds <= 1, ...).
var ErrInvalidInput = errors.New("betmath: invalid input")

// DefaultKellyCap is the default ceiling on the Kelly fraction. Full Kelly
// is too aggressive for real bankrolls, so sizing is clamped.
const DefaultKellyCap = 0.5

// KellyFraction computes the Kelly-optimal fraction of bankroll to stake.
//
// Formula: f* = (p*(b-1) - (1-p)) / (b-1), with b the decimal odds, so
// b-1 is the net payout per unit staked.
//
// The result is clamped to [0, cap]: a negative Kelly means no edge (stake
// nothing), and the cap bounds variance on large edges.
//
// Example: p=0.55, b=2.00, cap=0.5 -> f* = (0.55 - 0.45) / 1.00 = 0.10
func KellyFraction(p, b, cap float64) (float64, error) {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, ErrInvalidInput
	}
	if b <= 1 || math.IsNaN(b) {
		return 0, ErrInvalidInput
	}
	if cap <= 0 {
		cap = DefaultKellyCap
	}

	f := (p*(b-1) - (1 - p)) / (b - 1)

	if f < 0 {
		return 0, nil
	}
	if f > cap {
		return cap, nil
	}
	return f, nil
}

// ExpectedValue computes the expected profit of a stake at true
// probability p and decimal odds b.
//
// Formula: ev = stake * (p*(b-1) - (1-p))
//
// Example: p=0.55, b=2.00, stake=100 -> ev = 100 * (0.55 - 0.45) = 10
func ExpectedValue(p, b, stake float64) (float64, error) {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, ErrInvalidInput
	}
	if b <= 1 || math.IsNaN(b) {
		return 0, ErrInvalidInput
	}
	return stake * (p*(b-1) - (1 - p)), nil
}

// WinRate returns wins/settled, or 0 when nothing has settled.
func WinRate(wins, settled int) float64 {
	if settled == 0 {
		return 0
	}
	return float64(wins) / float64(settled)
}

// ROI returns profit relative to total amount staked, or 0 when nothing
// has been staked.
func ROI(profitLoss, totalStake float64) float64 {
	if totalStake == 0 {
		return 0
	}
	return profitLoss / totalStake
}

// MaxDrawdown returns the largest peak-to-trough decline of an equity
// curve, as a fraction of the peak. Empty and monotonically increasing
// curves return 0.
func MaxDrawdown(equityCurve []float64) float64 {
	if len(equityCurve) == 0 {
		return 0
	}

	peak := equityCurve[0]
	maxDD := 0.0

	for _, v := range equityCurve[1:] {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// SharpeRatio computes (mean(returns) - riskFreeRate) / stddev(returns).
// Returns 0 (not NaN) when the returns have zero variance or fewer than
// two samples.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	sd := StdDev(returns)
	// Constant returns leave float noise in the stddev, not exactly 0.
	if sd < 1e-12 {
		return 0
	}

	return (Mean(returns) - riskFreeRate) / sd
}

// CLV measures closing line value as the implied-probability delta between
// the price bet and the closing price. Positive means the bettor beat the
// close.
//
// Example: placed 2.10, closed 1.95 -> 1/1.95 - 1/2.10 = +0.0366
func CLV(placedOdds, closingOdds float64) (float64, error) {
	if placedOdds <= 1 || closingOdds <= 1 {
		return 0, ErrInvalidInput
	}
	return 1/closingOdds - 1/placedOdds, nil
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation, or 0 for fewer than
// two samples.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
