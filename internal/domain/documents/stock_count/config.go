package stock_count

import "wareflow/pkg/numerator"

const (
	// NumberPrefix is used for generated document numbers (CNT-2026-00042).
	NumberPrefix = "CNT"

	// NumeratorStrategy: count numbers are operational identifiers, so
	// gaps are acceptable and cached allocation avoids serializing
	// concurrent count scheduling.
	NumeratorStrategy = numerator.StrategyCached
)
