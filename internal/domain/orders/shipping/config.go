package shipping

import "stevedore/internal/core/numerator"

// Shipping order numbers must stay gapless within a year, so the strict
// strategy is used even though it costs a sequence round-trip per document.
const NumeratorStrategy = numerator.StrategyStrict

const NumberPrefix = "SHP"

// NumberConfig returns the numbering scheme for shipping orders.
func NumberConfig() numerator.Config {
	return numerator.DefaultConfig(NumberPrefix)
}
