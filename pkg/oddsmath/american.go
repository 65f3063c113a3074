package oddsmath

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AmericanToDecimal converts American odds to decimal odds
// American +150 → Decimal 2.50
// American -150 → Decimal 1.67
func AmericanToDecimal(american int) (float64, error) {
	if err := ValidateAmerican(american); err != nil {
		return 0, err
	}

	if american > 0 {
		return (float64(american) / 100.0) + 1.0, nil
	}

	return (100.0 / float64(-american)) + 1.0, nil
}

// DecimalToAmerican converts decimal odds to the nearest American integer.
// Lossy but deterministic: decimal-native provider prices round to the
// nearest whole American price.
func DecimalToAmerican(decimal float64) (int, error) {
	if decimal <= 1.0 {
		return 0, fmt.Errorf("invalid decimal odds %.4f: must be > 1.0", decimal)
	}

	if decimal >= 2.0 {
		return int(math.Round((decimal - 1.0) * 100.0)), nil
	}

	return int(math.Round(-100.0 / (decimal - 1.0))), nil
}

// FractionalToDecimal parses a fractional odds string like "5/2" into decimal
// odds (5/2 → 3.5).
func FractionalToDecimal(fractional string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(fractional), "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid fractional odds %q", fractional)
	}

	num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fractional numerator %q: %w", parts[0], err)
	}
	den, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fractional denominator %q: %w", parts[1], err)
	}
	if num <= 0 || den <= 0 {
		return 0, fmt.Errorf("invalid fractional odds %q: terms must be positive", fractional)
	}

	return (num / den) + 1.0, nil
}

// AmericanToImplied converts an American price to its implied probability:
// p = 100/(price+100) for positive prices, -price/(-price+100) for negative.
func AmericanToImplied(american int) (float64, error) {
	if err := ValidateAmerican(american); err != nil {
		return 0, err
	}

	if american > 0 {
		return 100.0 / (float64(american) + 100.0), nil
	}

	abs := float64(-american)
	return abs / (abs + 100.0), nil
}

// ImpliedToAmerican is the exact inverse of AmericanToImplied, returned as a
// float so the round trip holds to full precision. p = 0.5 maps to +100.
func ImpliedToAmerican(probability float64) (float64, error) {
	if probability <= 0 || probability >= 1 {
		return 0, fmt.Errorf("invalid probability %.6f: must be in (0, 1)", probability)
	}

	if probability <= 0.5 {
		return 100.0 * (1.0 - probability) / probability, nil
	}

	return -100.0 * probability / (1.0 - probability), nil
}

// ImpliedToAmericanPrice rounds ImpliedToAmerican to an integer price.
func ImpliedToAmericanPrice(probability float64) (int, error) {
	v, err := ImpliedToAmerican(probability)
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

// ValidateAmerican rejects zero and the impossible open interval (-100, 100).
func ValidateAmerican(american int) error {
	if american == 0 {
		return fmt.Errorf("invalid American odds: cannot be 0")
	}
	if american > -100 && american < 100 {
		return fmt.Errorf("invalid American odds %d: inside (-100, 100)", american)
	}
	return nil
}
