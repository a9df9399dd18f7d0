// Package stock_count provides the StockCount document: a physical
// inventory count reconciled against the ledger. Counted quantities
// are compared to system quantities captured at count time; posting
// turns the variances into count adjustments.
package stock_count

import (
	"context"
	"time"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/docstate"
	"wareflow/internal/domain/posting"
)

// DocumentType is the type name used in references and events.
const DocumentType = "StockCount"

// Count lifecycle states.
const (
	StatusScheduled     docstate.Status = "scheduled"
	StatusInProgress    docstate.Status = "in_progress"
	StatusPendingReview docstate.Status = "pending_review"
	StatusPosted        docstate.Status = "posted"
	StatusCancelled     docstate.Status = "cancelled"
)

// StateMachine returns the count transition table. A review can send
// the count back for recounting as many times as needed.
func StateMachine() *docstate.Machine {
	return docstate.New(DocumentType, docstate.Transitions{
		StatusScheduled:     {StatusInProgress, StatusCancelled},
		StatusInProgress:    {StatusPendingReview, StatusCancelled},
		StatusPendingReview: {StatusPosted, StatusInProgress, StatusCancelled},
		StatusPosted:        {StatusInProgress},
	})
}

// StockCount is a scheduled physical count of a warehouse.
type StockCount struct {
	entity.Document

	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Status docstate.Status `db:"status" json:"status"`

	ScheduledFor *time.Time `db:"scheduled_for" json:"scheduledFor,omitempty"`
	StartedAt    *time.Time `db:"started_at" json:"startedAt,omitempty"`

	// Table part: counted positions
	Lines []CountLine `db:"-" json:"lines"`
}

// CountLine is one position under count. SystemQuantity is captured
// from the ledger at the moment the line is counted, so the variance
// reflects the state the counter actually compared against.
type CountLine struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID  `db:"product_id" json:"productId"`
	BinID     *id.ID `db:"bin_id" json:"binId,omitempty"`
	BatchID   *id.ID `db:"batch_id" json:"batchId,omitempty"`

	SystemQuantity  types.Quantity `db:"system_quantity" json:"systemQuantity"`
	CountedQuantity types.Quantity `db:"counted_quantity" json:"countedQuantity"`

	Counted   bool       `db:"counted" json:"counted"`
	CountedAt *time.Time `db:"counted_at" json:"countedAt,omitempty"`

	// Variance is counted minus system, set when the line is counted.
	Variance types.Quantity `db:"variance" json:"variance"`

	// RecountRequired marks lines whose variance tripped the recount
	// rule; a reviewer may override instead of recounting.
	RecountRequired   bool `db:"recount_required" json:"recountRequired"`
	RecountOverridden bool `db:"recount_overridden" json:"recountOverridden"`
}

// VariancePercent is the absolute variance relative to the system
// quantity. A count against a zero system quantity is all variance.
func (l *CountLine) VariancePercent() float64 {
	if l.SystemQuantity.IsZero() {
		if l.Variance.IsZero() {
			return 0
		}
		return 100
	}
	return l.Variance.Abs().Float64() / l.SystemQuantity.Abs().Float64() * 100
}

// NewStockCount creates a scheduled count.
func NewStockCount(warehouseID id.ID) *StockCount {
	return &StockCount{
		Document:    entity.NewDocument(),
		WarehouseID: warehouseID,
		Status:      StatusScheduled,
		Lines:       make([]CountLine, 0),
	}
}

// AddLine adds a position to count.
func (c *StockCount) AddLine(productID id.ID, binID, batchID *id.ID) *CountLine {
	line := CountLine{
		LineID:    id.New(),
		LineNo:    len(c.Lines) + 1,
		ProductID: productID,
		BinID:     binID,
		BatchID:   batchID,
	}
	c.Lines = append(c.Lines, line)
	return &c.Lines[len(c.Lines)-1]
}

// Line returns the line with the given ID, or nil.
func (c *StockCount) Line(lineID id.ID) *CountLine {
	for i := range c.Lines {
		if c.Lines[i].LineID == lineID {
			return &c.Lines[i]
		}
	}
	return nil
}

// UncountedLines returns line IDs that were never counted.
func (c *StockCount) UncountedLines() []id.ID {
	var uncounted []id.ID
	for i := range c.Lines {
		if !c.Lines[i].Counted {
			uncounted = append(uncounted, c.Lines[i].LineID)
		}
	}
	return uncounted
}

// PendingRecounts returns line IDs that still require a recount.
func (c *StockCount) PendingRecounts() []id.ID {
	var pending []id.ID
	for i := range c.Lines {
		if c.Lines[i].RecountRequired && !c.Lines[i].RecountOverridden {
			pending = append(pending, c.Lines[i].LineID)
		}
	}
	return pending
}

// Key returns the stock key a line counts against.
func (c *StockCount) Key(line *CountLine) entity.StockKey {
	k := entity.StockKey{
		ProductID:   line.ProductID,
		WarehouseID: c.WarehouseID,
	}
	if line.BinID != nil {
		k.BinID = *line.BinID
	}
	if line.BatchID != nil {
		k.BatchID = *line.BatchID
	}
	return k
}

// Validate implements entity.Validatable.
func (c *StockCount) Validate(ctx context.Context) error {
	if err := c.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(c.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if len(c.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	seen := make(map[entity.StockKey]int, len(c.Lines))
	for i := range c.Lines {
		line := &c.Lines[i]
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		if line.Counted && line.CountedQuantity.IsNegative() {
			return apperror.NewValidation("counted quantity cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo)
		}
		key := c.Key(line)
		if prev, dup := seen[key]; dup {
			return apperror.NewValidation("duplicate count position").
				WithDetail("field", "lines").
				WithDetail("lineNo", line.LineNo).
				WithDetail("duplicateOf", prev)
		}
		seen[key] = line.LineNo
	}

	return nil
}

// --- Postable interface implementation ---

// GetDocumentType returns the document type name.
func (c *StockCount) GetDocumentType() string {
	return DocumentType
}

// CanPost allows posting from pending_review, with no recounts pending.
func (c *StockCount) CanPost(ctx context.Context) error {
	if c.Status != StatusPendingReview {
		return apperror.NewInvalidStateTransition(DocumentType, string(c.Status), string(StatusPosted))
	}
	if pending := c.PendingRecounts(); len(pending) > 0 {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"count has lines pending recount",
		).WithDetail("pending_lines", len(pending))
	}
	return c.Validate(ctx)
}

// MarkPosted flips the posted flag and the status together.
func (c *StockCount) MarkPosted() {
	c.Document.MarkPosted()
	c.Status = StatusPosted
}

// MarkUnposted clears the posted flag; the count reopens for recounting.
func (c *StockCount) MarkUnposted() {
	c.Document.MarkUnposted()
	c.Status = StatusInProgress
}

// GenerateMovements creates one count adjustment per counted line with
// a non-zero variance. Uncounted lines produce nothing; they are
// reported in the event payload, never written off.
func (c *StockCount) GenerateMovements(ctx context.Context) (*posting.MovementSet, error) {
	set := posting.NewMovementSet()
	newVersion := c.PostedVersion + 1

	adjusted := 0
	for i := range c.Lines {
		line := &c.Lines[i]
		if !line.Counted || line.Variance.IsZero() {
			continue
		}

		m := entity.NewStockMovement(
			entity.MovementCountAdjustment,
			line.ProductID,
			line.Variance.Abs(),
			DocumentType,
			c.ID,
			newVersion,
			c.Date,
		)
		if line.Variance.IsPositive() {
			m = m.WithDestination(c.WarehouseID, line.BinID, line.BatchID)
		} else {
			m = m.WithSource(c.WarehouseID, line.BinID, line.BatchID)
		}
		set.AddStock(m)
		adjusted++
	}

	uncounted := c.UncountedLines()
	uncountedIDs := make([]string, 0, len(uncounted))
	for _, lineID := range uncounted {
		uncountedIDs = append(uncountedIDs, lineID.String())
	}

	set.SetEvent("StockCountPosted")
	set.AddEventField("number", c.Number)
	set.AddEventField("adjustedLines", adjusted)
	set.AddEventField("uncountedLines", uncountedIDs)
	return set, nil
}

var _ posting.Postable = (*StockCount)(nil)
