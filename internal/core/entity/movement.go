// Package entity provides core domain entities.
package entity

import (
	"bytes"
	"fmt"
	"time"

	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
)

// MovementType classifies a stock ledger entry. Direction is a function
// of the type: inbound types credit the destination key, outbound types
// debit the source key, transfer_in does both (in-transit release plus
// destination receipt).
type MovementType string

const (
	MovementPurchaseReceipt    MovementType = "purchase_receipt"
	MovementTransferOut        MovementType = "transfer_out"
	MovementTransferIn         MovementType = "transfer_in"
	MovementPositiveAdjustment MovementType = "positive_adjustment"
	MovementNegativeAdjustment MovementType = "negative_adjustment"
	MovementCountAdjustment    MovementType = "count_adjustment"
	MovementSalesIssue         MovementType = "sales_issue"
	MovementDamageWriteOff     MovementType = "damage_write_off"
)

// Inbound reports whether the type adds on-hand stock at the destination.
func (t MovementType) Inbound() bool {
	switch t {
	case MovementPurchaseReceipt, MovementTransferIn, MovementPositiveAdjustment:
		return true
	}
	return false
}

// Outbound reports whether the type removes on-hand stock at the source.
func (t MovementType) Outbound() bool {
	switch t {
	case MovementTransferOut, MovementNegativeAdjustment, MovementSalesIssue, MovementDamageWriteOff:
		return true
	}
	return false
}

// MovementStatus is the lifecycle state of a ledger entry. Entries are
// immutable except for the completed→reversed flip made by a reversal.
type MovementStatus string

const (
	MovementStatusPending   MovementStatus = "pending"
	MovementStatusCompleted MovementStatus = "completed"
	MovementStatusReversed  MovementStatus = "reversed"
	MovementStatusCancelled MovementStatus = "cancelled"
)

// StockKey identifies one stock level row: product + warehouse, with
// optional bin and batch dimensions (id.Nil() when absent).
type StockKey struct {
	ProductID   id.ID `json:"productId"`
	WarehouseID id.ID `json:"warehouseId"`
	BinID       id.ID `json:"binId,omitempty"`
	BatchID     id.ID `json:"batchId,omitempty"`
}

// Less orders keys by (product, warehouse, bin, batch) byte order.
// Posting locks level rows in this order to avoid lock cycles.
func (k StockKey) Less(other StockKey) bool {
	if c := bytes.Compare(k.ProductID[:], other.ProductID[:]); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(k.WarehouseID[:], other.WarehouseID[:]); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(k.BinID[:], other.BinID[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(k.BatchID[:], other.BatchID[:]) < 0
}

// String returns a canonical map key representation.
func (k StockKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.ProductID, k.WarehouseID, k.BinID, k.BatchID)
}

// StockMovement is one append-only ledger entry. The ledger is the
// single source of truth; stock levels are a projection rebuilt from it
// in the same transaction.
type StockMovement struct {
	// LineID is the unique identifier for this ledger line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	MovementType MovementType `db:"movement_type" json:"movementType"`

	ProductID id.ID `db:"product_id" json:"productId"`

	// Source key (set for outbound and transfer_in types)
	FromWarehouseID *id.ID `db:"from_warehouse_id" json:"fromWarehouseId,omitempty"`
	FromBinID       *id.ID `db:"from_bin_id" json:"fromBinId,omitempty"`
	FromBatchID     *id.ID `db:"from_batch_id" json:"fromBatchId,omitempty"`

	// Destination key (set for inbound types)
	ToWarehouseID *id.ID `db:"to_warehouse_id" json:"toWarehouseId,omitempty"`
	ToBinID       *id.ID `db:"to_bin_id" json:"toBinId,omitempty"`
	ToBatchID     *id.ID `db:"to_batch_id" json:"toBatchId,omitempty"`

	// Quantity is always positive; direction comes from the type.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// UnitCost and TotalCost are filled by the valuation engine during
	// posting. Unlayered marks outbound quantity that exceeded the
	// available cost layers and was costed at last known cost.
	UnitCost  types.Money `db:"unit_cost" json:"unitCost"`
	TotalCost types.Money `db:"total_cost" json:"totalCost"`
	Unlayered bool        `db:"unlayered" json:"unlayered,omitempty"`

	// Reference is the originating document and its posting iteration.
	ReferenceType    string `db:"reference_type" json:"referenceType"`
	ReferenceID      id.ID  `db:"reference_id" json:"referenceId"`
	ReferenceVersion int    `db:"reference_version" json:"referenceVersion"`

	// RunningBalance is the on-hand quantity of the primary affected key
	// immediately after this entry was applied.
	RunningBalance types.Quantity `db:"running_balance" json:"runningBalance"`

	Status MovementStatus `db:"status" json:"status"`

	// ReversalOf points to the ledger line this entry compensates.
	ReversalOf *id.ID `db:"reversal_of" json:"reversalOf,omitempty"`

	CreatedBy string `db:"created_by" json:"createdBy,omitempty"`

	// Period is the business date for period-based queries.
	Period time.Time `db:"period" json:"period"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a ledger entry skeleton for a document line.
// Costs, running balance and status are filled during posting.
func NewStockMovement(
	movementType MovementType,
	productID id.ID,
	quantity types.Quantity,
	referenceType string,
	referenceID id.ID,
	referenceVersion int,
	period time.Time,
) StockMovement {
	return StockMovement{
		LineID:           id.New(),
		MovementType:     movementType,
		ProductID:        productID,
		Quantity:         quantity,
		ReferenceType:    referenceType,
		ReferenceID:      referenceID,
		ReferenceVersion: referenceVersion,
		Status:           MovementStatusPending,
		Period:           period,
		CreatedAt:        time.Now().UTC(),
	}
}

// WithSource sets the source key. Nil bin/batch mean the dimension is unused.
func (m StockMovement) WithSource(warehouseID id.ID, binID, batchID *id.ID) StockMovement {
	m.FromWarehouseID = &warehouseID
	m.FromBinID = binID
	m.FromBatchID = batchID
	return m
}

// WithDestination sets the destination key.
func (m StockMovement) WithDestination(warehouseID id.ID, binID, batchID *id.ID) StockMovement {
	m.ToWarehouseID = &warehouseID
	m.ToBinID = binID
	m.ToBatchID = batchID
	return m
}

// SourceKey returns the source stock key, or false when the movement has none.
func (m *StockMovement) SourceKey() (StockKey, bool) {
	if m.FromWarehouseID == nil {
		return StockKey{}, false
	}
	return StockKey{
		ProductID:   m.ProductID,
		WarehouseID: *m.FromWarehouseID,
		BinID:       deref(m.FromBinID),
		BatchID:     deref(m.FromBatchID),
	}, true
}

// DestinationKey returns the destination stock key, or false when absent.
func (m *StockMovement) DestinationKey() (StockKey, bool) {
	if m.ToWarehouseID == nil {
		return StockKey{}, false
	}
	return StockKey{
		ProductID:   m.ProductID,
		WarehouseID: *m.ToWarehouseID,
		BinID:       deref(m.ToBinID),
		BatchID:     deref(m.ToBatchID),
	}, true
}

// PrimaryKey is the key whose on-hand balance this entry records as
// RunningBalance: destination for inbound types, source otherwise.
func (m *StockMovement) PrimaryKey() (StockKey, bool) {
	if m.MovementType.Inbound() || m.MovementType == MovementCountAdjustment {
		if k, ok := m.DestinationKey(); ok {
			return k, true
		}
	}
	return m.SourceKey()
}

// Validate checks the entry's internal invariants before it is appended.
func (m *StockMovement) Validate() error {
	if !m.Quantity.IsPositive() {
		return fmt.Errorf("movement %s: quantity must be positive, got %s", m.LineID, m.Quantity)
	}
	_, hasFrom := m.SourceKey()
	_, hasTo := m.DestinationKey()

	switch m.MovementType {
	case MovementPurchaseReceipt, MovementPositiveAdjustment:
		if !hasTo {
			return fmt.Errorf("movement %s: %s requires destination", m.LineID, m.MovementType)
		}
	case MovementTransferOut, MovementNegativeAdjustment, MovementSalesIssue, MovementDamageWriteOff:
		if !hasFrom {
			return fmt.Errorf("movement %s: %s requires source", m.LineID, m.MovementType)
		}
	case MovementTransferIn:
		if !hasFrom || !hasTo {
			return fmt.Errorf("movement %s: transfer_in requires source and destination", m.LineID)
		}
	case MovementCountAdjustment:
		if hasFrom == hasTo {
			return fmt.Errorf("movement %s: count_adjustment requires exactly one of source or destination", m.LineID)
		}
	default:
		return fmt.Errorf("movement %s: unknown movement type %q", m.LineID, m.MovementType)
	}
	return nil
}

// LevelDelta is the projection effect of one ledger entry on one stock
// level row. A single entry produces one or two deltas.
type LevelDelta struct {
	Key       StockKey
	OnHand    types.Quantity
	Reserved  types.Quantity
	OnOrder   types.Quantity
	InTransit types.Quantity

	// UnitCost, when set, updates the level's moving cost reference.
	UnitCost *types.Money
}

// Deltas maps the entry to its projection effects.
func (m *StockMovement) Deltas() []LevelDelta {
	q := m.Quantity
	switch m.MovementType {
	case MovementTransferOut:
		// In-transit quantity stays on the source key; a reversal of a
		// transfer_in parks it on the destination key instead.
		src, _ := m.SourceKey()
		transit := src
		if dst, ok := m.DestinationKey(); ok {
			transit = dst
		}
		if transit == src {
			return []LevelDelta{{Key: src, OnHand: q.Neg(), InTransit: q}}
		}
		return []LevelDelta{
			{Key: src, OnHand: q.Neg()},
			{Key: transit, InTransit: q},
		}
	case MovementTransferIn:
		src, _ := m.SourceKey()
		dst, _ := m.DestinationKey()
		return []LevelDelta{
			{Key: src, InTransit: q.Neg()},
			{Key: dst, OnHand: q},
		}
	case MovementCountAdjustment:
		if dst, ok := m.DestinationKey(); ok {
			return []LevelDelta{{Key: dst, OnHand: q}}
		}
		src, _ := m.SourceKey()
		return []LevelDelta{{Key: src, OnHand: q.Neg()}}
	default:
		if m.MovementType.Inbound() {
			dst, _ := m.DestinationKey()
			return []LevelDelta{{Key: dst, OnHand: q}}
		}
		src, _ := m.SourceKey()
		return []LevelDelta{{Key: src, OnHand: q.Neg()}}
	}
}

// Reversal builds the compensating entry: same keys, inverse direction,
// original cost, back-reference via ReversalOf.
func (m *StockMovement) Reversal(referenceVersion int, period time.Time) StockMovement {
	rev := *m
	rev.LineID = id.New()
	rev.MovementType = m.MovementType.inverse()
	switch m.MovementType {
	case MovementTransferOut:
		// Release in-transit back to on-hand at the source.
		rev.FromWarehouseID, rev.FromBinID, rev.FromBatchID = m.FromWarehouseID, m.FromBinID, m.FromBatchID
		rev.ToWarehouseID, rev.ToBinID, rev.ToBatchID = m.FromWarehouseID, m.FromBinID, m.FromBatchID
	case MovementTransferIn:
		// Pull on-hand off the destination and put it back in transit
		// on the source key.
		rev.FromWarehouseID, rev.FromBinID, rev.FromBatchID = m.ToWarehouseID, m.ToBinID, m.ToBatchID
		rev.ToWarehouseID, rev.ToBinID, rev.ToBatchID = m.FromWarehouseID, m.FromBinID, m.FromBatchID
	default:
		rev.FromWarehouseID, rev.ToWarehouseID = m.ToWarehouseID, m.FromWarehouseID
		rev.FromBinID, rev.ToBinID = m.ToBinID, m.FromBinID
		rev.FromBatchID, rev.ToBatchID = m.ToBatchID, m.FromBatchID
	}
	rev.ReferenceVersion = referenceVersion
	rev.RunningBalance = 0
	rev.Status = MovementStatusPending
	rev.Unlayered = false
	orig := m.LineID
	rev.ReversalOf = &orig
	rev.Period = period
	rev.CreatedAt = time.Now().UTC()
	return rev
}

func (t MovementType) inverse() MovementType {
	switch t {
	case MovementPurchaseReceipt, MovementPositiveAdjustment:
		return MovementNegativeAdjustment
	case MovementNegativeAdjustment, MovementSalesIssue, MovementDamageWriteOff:
		return MovementPositiveAdjustment
	case MovementTransferOut:
		return MovementTransferIn
	case MovementTransferIn:
		return MovementTransferOut
	case MovementCountAdjustment:
		return MovementCountAdjustment
	}
	return t
}

func deref(p *id.ID) id.ID {
	if p == nil {
		return id.Nil()
	}
	return *p
}
