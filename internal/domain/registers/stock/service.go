// Package stock provides the stock ledger service.
package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/pkg/logger"
)

// Service provides business operations for the stock ledger and the
// level projection. Transactions are managed by the caller (posting
// engine); lock acquisition and delta application assume an open tx.
type Service struct {
	repo Repository
}

// NewService creates a new stock ledger service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// Levels holds locked projection rows keyed by StockKey.String().
type Levels map[string]*entity.StockLevel

// Get returns the locked level for a key, or nil.
func (lv Levels) Get(key entity.StockKey) *entity.StockLevel {
	return lv[key.String()]
}

// CollectKeys gathers the distinct stock keys touched by a set of
// movements and extra projection deltas, sorted in the canonical
// (product, warehouse, bin, batch) lock order.
func CollectKeys(movements []entity.StockMovement, extra []entity.LevelDelta) []entity.StockKey {
	seen := make(map[string]entity.StockKey)
	for i := range movements {
		for _, d := range movements[i].Deltas() {
			seen[d.Key.String()] = d.Key
		}
	}
	for _, d := range extra {
		seen[d.Key.String()] = d.Key
	}

	keys := make([]entity.StockKey, 0, len(seen))
	for _, k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// LockLevels acquires row locks on the level rows for the given keys.
// Keys must already be sorted (CollectKeys does this); locking in a
// consistent order across all postings prevents deadlocks.
func (s *Service) LockLevels(ctx context.Context, keys []entity.StockKey) (Levels, error) {
	levels := make(Levels, len(keys))
	for _, key := range keys {
		lvl, err := s.repo.GetLevelForUpdate(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("lock level %s: %w", key, err)
		}
		levels[key.String()] = lvl
	}
	return levels, nil
}

// ApplyDeltas mutates locked levels in memory and enforces the
// non-negative invariants. allowNegative reports the warehouse policy
// for on-hand going below zero; in-transit may never go negative.
func (s *Service) ApplyDeltas(
	ctx context.Context,
	levels Levels,
	deltas []entity.LevelDelta,
	allowNegative func(warehouseID id.ID) bool,
) error {
	now := time.Now().UTC()
	for _, d := range deltas {
		lvl := levels.Get(d.Key)
		if lvl == nil {
			return fmt.Errorf("level %s was not locked before delta application", d.Key)
		}

		if d.OnHand.IsNegative() && !allowNegative(d.Key.WarehouseID) {
			if lvl.QuantityOnHand+d.OnHand < 0 {
				return apperror.NewInsufficientStock(
					d.Key.ProductID.String(),
					d.Key.WarehouseID.String(),
					d.OnHand.Abs().String(),
					lvl.QuantityOnHand.String(),
				)
			}
		}
		if d.InTransit.IsNegative() && lvl.QuantityInTransit+d.InTransit < 0 {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"in-transit quantity cannot go negative",
			).WithDetail("product_id", d.Key.ProductID.String()).
				WithDetail("warehouse_id", d.Key.WarehouseID.String())
		}

		lvl.Apply(d, now)
	}
	return nil
}

// Append validates and inserts ledger entries. Called during posting
// after deltas were applied, so entries carry final costs and balances.
func (s *Service) Append(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	for i := range movements {
		m := &movements[i]
		if err := m.Validate(); err != nil {
			return apperror.NewValidation(err.Error())
		}
		if id.IsNil(m.ReferenceID) {
			return apperror.NewValidation(fmt.Sprintf("movement %d: reference_id is required", i))
		}
	}

	if err := s.repo.AppendMovements(ctx, movements); err != nil {
		return fmt.Errorf("append movements: %w", err)
	}

	logger.Info(ctx, "appended stock movements",
		"count", len(movements),
		"reference_id", movements[0].ReferenceID,
	)

	return nil
}

// SaveLevels persists all locked levels after delta application.
func (s *Service) SaveLevels(ctx context.Context, levels Levels) error {
	for _, lvl := range levels {
		if err := s.repo.UpdateLevel(ctx, lvl); err != nil {
			return fmt.Errorf("update level %s/%s: %w", lvl.ProductID, lvl.WarehouseID, err)
		}
	}
	return nil
}

// GetDocumentMovements returns the ledger entries a document produced.
func (s *Service) GetDocumentMovements(ctx context.Context, referenceID id.ID) ([]entity.StockMovement, error) {
	return s.repo.GetMovementsByReference(ctx, referenceID)
}

// MarkReversed flips one posting iteration's completed entries to reversed.
func (s *Service) MarkReversed(ctx context.Context, referenceID id.ID, version int) error {
	if err := s.repo.MarkMovementsReversed(ctx, referenceID, version); err != nil {
		return fmt.Errorf("mark movements reversed: %w", err)
	}

	logger.Info(ctx, "marked stock movements reversed",
		"reference_id", referenceID,
		"reference_version", version,
	)

	return nil
}

// GetLevel returns the current projection row for a key.
func (s *Service) GetLevel(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	return s.repo.GetLevel(ctx, key)
}

// GetProductAvailability returns available quantity across warehouses.
func (s *Service) GetProductAvailability(ctx context.Context, productID id.ID) (types.Quantity, error) {
	levels, err := s.repo.GetLevelsByProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("get levels: %w", err)
	}

	var total types.Quantity
	for i := range levels {
		total += levels[i].QuantityAvailable()
	}

	return total, nil
}

// GetWarehouseStock returns all non-zero levels in a warehouse.
func (s *Service) GetWarehouseStock(ctx context.Context, warehouseID id.ID, filter LevelFilter) ([]entity.StockLevel, error) {
	return s.repo.ListLevels(ctx, warehouseID, filter)
}

// GetMovementHistory returns ledger history for a product.
func (s *Service) GetMovementHistory(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	return s.repo.GetMovementHistory(ctx, productID, filter)
}

// GetStockReport generates a turnover report for the period.
func (s *Service) GetStockReport(ctx context.Context, filter TurnoverFilter) (Turnover, error) {
	return s.repo.GetTurnover(ctx, filter)
}

// GetBalanceAtDate replays the ledger to reconstruct on-hand at a date.
func (s *Service) GetBalanceAtDate(ctx context.Context, key entity.StockKey, date time.Time) (types.Quantity, error) {
	return s.repo.GetBalanceAtDate(ctx, key, date)
}

// GetLowStock returns levels at or below their product reorder points.
func (s *Service) GetLowStock(ctx context.Context, warehouseID id.ID, reorderPoints map[id.ID]types.Quantity) ([]entity.StockLevel, error) {
	return s.repo.GetLowStock(ctx, warehouseID, reorderPoints)
}
