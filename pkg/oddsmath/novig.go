package oddsmath

import "fmt"

// RemoveVigMultiplicative removes vig from a two-way market by proportional
// normalization: each side's implied probability is divided by their sum, so
// the fair probabilities sum to exactly 1.
//
// Side A: -110 (52.38%) | Side B: -110 (52.38%) → fair 50% / 50%
func RemoveVigMultiplicative(prob1, prob2 float64) (fair1, fair2 float64, err error) {
	if prob1 <= 0 || prob1 >= 1 || prob2 <= 0 || prob2 >= 1 {
		return 0, 0, fmt.Errorf("probabilities must be between 0 and 1")
	}

	total := prob1 + prob2
	if total <= 1.0 {
		return 0, 0, fmt.Errorf("no vig detected: probabilities sum to <= 1.0")
	}

	return prob1 / total, prob2 / total, nil
}

// RemoveVigProportional generalizes multiplicative vig removal to markets with
// any number of outcomes (three-way moneylines with a draw).
func RemoveVigProportional(probabilities []float64) ([]float64, error) {
	if len(probabilities) < 2 {
		return nil, fmt.Errorf("need at least 2 outcomes")
	}

	total := 0.0
	for _, p := range probabilities {
		if p <= 0 || p >= 1 {
			return nil, fmt.Errorf("all probabilities must be between 0 and 1")
		}
		total += p
	}

	if total <= 1.0 {
		return nil, fmt.Errorf("no vig detected: probabilities sum to <= 1.0")
	}

	fair := make([]float64, len(probabilities))
	for i, p := range probabilities {
		fair[i] = p / total
	}
	return fair, nil
}

// VigPercentage returns the overround of a market as a percentage, or 0 when
// the probabilities already sum below 1.
func VigPercentage(probabilities []float64) (float64, error) {
	if len(probabilities) == 0 {
		return 0, fmt.Errorf("no probabilities provided")
	}

	total := 0.0
	for _, p := range probabilities {
		if p <= 0 || p >= 1 {
			return 0, fmt.Errorf("all probabilities must be between 0 and 1")
		}
		total += p
	}

	if total <= 1.0 {
		return 0, nil
	}
	return (total - 1.0) * 100.0, nil
}
