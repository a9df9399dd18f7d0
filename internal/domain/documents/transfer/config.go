package transfer

import "wareflow/pkg/numerator"

const (
	// NumberPrefix is used for generated document numbers (TRF-2026-00042).
	NumberPrefix = "TRF"

	// NumeratorStrategy: transfers are accounting documents, so numbers
	// must be sequential without gaps.
	NumeratorStrategy = numerator.StrategyStrict
)
