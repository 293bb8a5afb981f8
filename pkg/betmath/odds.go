package betmath

import "math"

// AmericanToDecimal converts American odds to decimal odds.
// American +150 -> Decimal 2.50
// American -150 -> Decimal 1.67
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, ErrInvalidInput
	}

	if american > 0 {
		return (float64(american) / 100.0) + 1.0, nil
	}
	return (100.0 / float64(-american)) + 1.0, nil
}

// DecimalToAmerican converts decimal odds to American odds.
// Decimal 2.50 -> American +150
// Decimal 1.67 -> American -150
func DecimalToAmerican(decimal float64) (int, error) {
	if decimal <= 1.0 {
		return 0, ErrInvalidInput
	}

	if decimal >= 2.0 {
		return int(math.Round((decimal - 1.0) * 100.0)), nil
	}
	return int(math.Round(-100.0 / (decimal - 1.0))), nil
}

// ImpliedProbability converts decimal odds to implied probability.
// Decimal 2.00 -> 0.50
func ImpliedProbability(decimal float64) (float64, error) {
	if decimal <= 1.0 {
		return 0, ErrInvalidInput
	}
	return 1.0 / decimal, nil
}

// ProbabilityToDecimal converts a win probability to fair decimal odds.
// 0.50 -> 2.00
func ProbabilityToDecimal(probability float64) (float64, error) {
	if probability <= 0 || probability >= 1 {
		return 0, ErrInvalidInput
	}
	return 1.0 / probability, nil
}

// RemoveVig removes the bookmaker's overround from a two-way market using
// the multiplicative method.
//
// Formula:
//  1. totalProb = prob1 + prob2 (> 1.0 when the market carries vig)
//  2. fair1 = prob1 / totalProb, fair2 = prob2 / totalProb
//
// Example: -110/-110 (0.5238 each, 4.76% vig) -> 0.50 / 0.50
func RemoveVig(prob1, prob2 float64) (fair1, fair2 float64, err error) {
	if prob1 <= 0 || prob1 >= 1 || prob2 <= 0 || prob2 >= 1 {
		return 0, 0, ErrInvalidInput
	}

	totalProb := prob1 + prob2
	if totalProb <= 1.0 {
		// Already fair (or arbitrage) - nothing to remove.
		return prob1, prob2, nil
	}

	return prob1 / totalProb, prob2 / totalProb, nil
}
