package adjustment

import "wareflow/pkg/numerator"

const (
	// NumberPrefix is used for generated document numbers (ADJ-2026-00042).
	NumberPrefix = "ADJ"

	// NumeratorStrategy: adjustments are accounting documents, so
	// numbers must be sequential without gaps.
	NumeratorStrategy = numerator.StrategyStrict
)
