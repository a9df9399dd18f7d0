package purchase_order

import "wareflow/pkg/numerator"

const (
	// NumberPrefix is used for generated document numbers (PO-2026-00042).
	NumberPrefix = "PO"

	// NumeratorStrategy: purchase orders are accounting documents, so
	// numbers must be sequential without gaps.
	NumeratorStrategy = numerator.StrategyStrict
)
