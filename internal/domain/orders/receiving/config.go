package receiving

import "stevedore/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for this document type.
	// Receiving orders are reconciled against carrier paperwork, so numbers
	// must be gap-free.
	NumeratorStrategy = numerator.StrategyStrict

	// NumberPrefix yields RCV-2026-00001 style numbers with a yearly reset.
	NumberPrefix = "RCV"
)
