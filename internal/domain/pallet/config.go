package pallet

import "stevedore/internal/core/numerator"

// Label numbering. Labels are internal identifiers, so gaps after a restart
// are acceptable and the cached strategy keeps tally confirmation fast.
const LabelNumeratorStrategy = numerator.StrategyCached

// LabelNumeratorConfig yields labels like PLT-00000001 (no yearly reset).
func LabelNumeratorConfig() numerator.Config {
	return numerator.Config{
		Prefix:      "PLT",
		IncludeYear: false,
		PadWidth:    8,
		ResetPeriod: "never",
	}
}
