package manifest

import "stevedore/internal/core/numerator"

// Manifest numbers must stay gapless within a year, matching the other
// warehouse documents.
const NumeratorStrategy = numerator.StrategyStrict

const NumberPrefix = "MAN"

// NumberConfig returns the numbering scheme for manifests.
func NumberConfig() numerator.Config {
	return numerator.DefaultConfig(NumberPrefix)
}
