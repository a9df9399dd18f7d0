package goods_receipt

import "wareflow/pkg/numerator"

const (
	// NumberPrefix is used for generated document numbers (GR-2026-00042).
	NumberPrefix = "GR"

	// NumeratorStrategy: receipts are accounting documents, so numbers
	// must be sequential without gaps.
	NumeratorStrategy = numerator.StrategyStrict
)
