package posting

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wareflow/internal/core/apperror"
	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
	"wareflow/internal/core/types"
	"wareflow/internal/domain/masterdata"
	"wareflow/internal/domain/registers/stock"
	"wareflow/internal/domain/valuation"
)

// --- In-memory fakes ---

type fakeTxManager struct {
	// failWith, when set, is returned after fn runs (simulates a commit
	// failure such as a lock timeout).
	failWith error
	runs     int
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.runs++
	if err := fn(ctx); err != nil {
		return err
	}
	return m.failWith
}

type fakeStockRepo struct {
	levels   map[string]*entity.StockLevel
	appended []entity.StockMovement
}

func newFakeStockRepo() *fakeStockRepo {
	return &fakeStockRepo{levels: make(map[string]*entity.StockLevel)}
}

func (r *fakeStockRepo) AppendMovements(_ context.Context, movements []entity.StockMovement) error {
	r.appended = append(r.appended, movements...)
	return nil
}

func (r *fakeStockRepo) MarkMovementsReversed(_ context.Context, referenceID id.ID, version int) error {
	for i := range r.appended {
		m := &r.appended[i]
		if m.ReferenceID == referenceID &&
			m.ReferenceVersion == version &&
			m.Status == entity.MovementStatusCompleted &&
			m.ReversalOf == nil {
			m.Status = entity.MovementStatusReversed
		}
	}
	return nil
}

func (r *fakeStockRepo) GetMovementsByReference(_ context.Context, referenceID id.ID) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, m := range r.appended {
		if m.ReferenceID == referenceID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeStockRepo) GetLevel(_ context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	if lvl, ok := r.levels[key.String()]; ok {
		return lvl, nil
	}
	return entity.NewStockLevel(key, time.Now().UTC()), nil
}

func (r *fakeStockRepo) GetLevelForUpdate(_ context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	if lvl, ok := r.levels[key.String()]; ok {
		return lvl, nil
	}
	lvl := entity.NewStockLevel(key, time.Now().UTC())
	r.levels[key.String()] = lvl
	return lvl, nil
}

func (r *fakeStockRepo) UpdateLevel(_ context.Context, level *entity.StockLevel) error {
	r.levels[level.Key().String()] = level
	return nil
}

func (r *fakeStockRepo) ListLevels(_ context.Context, _ id.ID, _ stock.LevelFilter) ([]entity.StockLevel, error) {
	return nil, nil
}

func (r *fakeStockRepo) GetLevelsByProduct(_ context.Context, _ id.ID) ([]entity.StockLevel, error) {
	return nil, nil
}

func (r *fakeStockRepo) GetBalanceAtDate(_ context.Context, _ entity.StockKey, _ time.Time) (types.Quantity, error) {
	return 0, nil
}

func (r *fakeStockRepo) GetMovementHistory(_ context.Context, _ id.ID, _ stock.MovementFilter) ([]entity.StockMovement, error) {
	return nil, nil
}

func (r *fakeStockRepo) GetTurnover(_ context.Context, _ stock.TurnoverFilter) (stock.Turnover, error) {
	return stock.Turnover{}, nil
}

func (r *fakeStockRepo) GetLowStock(_ context.Context, _ id.ID, _ map[id.ID]types.Quantity) ([]entity.StockLevel, error) {
	return nil, nil
}

type txLocksKey struct{}

type txLocks struct {
	held []*sync.Mutex
}

// lockingTxManager releases the row locks a transaction acquired when
// it ends, mirroring FOR UPDATE lock lifetime.
type lockingTxManager struct{}

func (m *lockingTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	locks := &txLocks{}
	err := fn(context.WithValue(ctx, txLocksKey{}, locks))
	for _, mu := range locks.held {
		mu.Unlock()
	}
	return err
}

// lockingStockRepo blocks GetLevelForUpdate on a per-key mutex that the
// surrounding transaction holds until it finishes.
type lockingStockRepo struct {
	*fakeStockRepo
	mu       sync.Mutex
	rowLocks map[string]*sync.Mutex
}

func newLockingStockRepo() *lockingStockRepo {
	return &lockingStockRepo{
		fakeStockRepo: newFakeStockRepo(),
		rowLocks:      make(map[string]*sync.Mutex),
	}
}

func (r *lockingStockRepo) GetLevelForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	r.mu.Lock()
	rowMu, ok := r.rowLocks[key.String()]
	if !ok {
		rowMu = &sync.Mutex{}
		r.rowLocks[key.String()] = rowMu
	}
	r.mu.Unlock()

	rowMu.Lock()
	if locks, ok := ctx.Value(txLocksKey{}).(*txLocks); ok {
		locks.held = append(locks.held, rowMu)
	}
	return r.fakeStockRepo.GetLevelForUpdate(ctx, key)
}

type fakeLayerRepo struct {
	layers map[id.ID]valuation.CostLayer
	seq    int
}

func newFakeLayerRepo() *fakeLayerRepo {
	return &fakeLayerRepo{layers: make(map[id.ID]valuation.CostLayer)}
}

func (r *fakeLayerRepo) GetLayersForUpdate(_ context.Context, productID, warehouseID id.ID, order valuation.ConsumeOrder) ([]valuation.CostLayer, error) {
	var out []valuation.CostLayer
	for _, l := range r.layers {
		if l.ProductID == productID && l.WarehouseID == warehouseID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if order == valuation.ConsumeNewestFirst {
			return out[i].ReceivedAt.After(out[j].ReceivedAt)
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out, nil
}

func (r *fakeLayerRepo) InsertLayer(_ context.Context, layer valuation.CostLayer) error {
	r.seq++
	layer.ReceivedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(r.seq) * time.Hour)
	r.layers[layer.ID] = layer
	return nil
}

func (r *fakeLayerRepo) UpdateLayer(_ context.Context, layerID id.ID, remaining types.Quantity, unitCost types.Money) error {
	l := r.layers[layerID]
	l.QuantityRemaining = remaining
	l.UnitCost = unitCost
	r.layers[layerID] = l
	return nil
}

func (r *fakeLayerRepo) DeleteLayer(_ context.Context, layerID id.ID) error {
	delete(r.layers, layerID)
	return nil
}

type fakeWarehouses struct {
	allowNegative map[id.ID]bool
}

func (f *fakeWarehouses) GetByID(_ context.Context, warehouseID id.ID) (*masterdata.Warehouse, error) {
	return &masterdata.Warehouse{
		AllowNegativeStock: f.allowNegative[warehouseID],
		IsActive:           true,
	}, nil
}

func (f *fakeWarehouses) Exists(_ context.Context, _ id.ID) (bool, error) {
	return true, nil
}

type capturingPublisher struct {
	events []Event
}

func (p *capturingPublisher) Publish(_ context.Context, event Event) error {
	p.events = append(p.events, event)
	return nil
}

type capturingAudit struct {
	actions []string
}

func (a *capturingAudit) LogAction(_ context.Context, _ string, _ id.ID, action string, _ map[string]any) error {
	a.actions = append(a.actions, action)
	return nil
}

// testDoc is a minimal Postable with a pluggable movement builder.
type testDoc struct {
	entity.Document
	docType string
	build   func() *MovementSet
}

func (d *testDoc) GetDocumentType() string { return d.docType }

func (d *testDoc) GenerateMovements(_ context.Context) (*MovementSet, error) {
	return d.build(), nil
}

func newTestDoc(docType string, build func() *MovementSet) *testDoc {
	return &testDoc{
		Document: entity.NewDocument(),
		docType:  docType,
		build:    build,
	}
}

// --- Test harness ---

type harness struct {
	engine     *Engine
	stockRepo  *fakeStockRepo
	layerRepo  *fakeLayerRepo
	txManager  *fakeTxManager
	warehouses *fakeWarehouses
	events     *capturingPublisher
	audit      *capturingAudit
}

func newHarness() *harness {
	h := &harness{
		stockRepo:  newFakeStockRepo(),
		layerRepo:  newFakeLayerRepo(),
		txManager:  &fakeTxManager{},
		warehouses: &fakeWarehouses{allowNegative: make(map[id.ID]bool)},
		events:     &capturingPublisher{},
		audit:      &capturingAudit{},
	}
	h.engine = NewEngine(
		stock.NewService(h.stockRepo),
		valuation.NewEngine(h.layerRepo, valuation.MethodFIFO, nil),
		h.txManager,
		h.warehouses,
		h.events,
		h.audit,
	)
	return h
}

func (h *harness) level(key entity.StockKey) *entity.StockLevel {
	return h.stockRepo.levels[key.String()]
}

func qty(f float64) types.Quantity { return types.NewQuantityFromFloat64(f) }

func noopUpdate(_ context.Context) error { return nil }

// --- Tests ---

func TestEngine_Post_Inbound(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	product, warehouse := id.New(), id.New()
	doc := newTestDoc("GoodsReceipt", nil)
	doc.build = func() *MovementSet {
		set := NewMovementSet()
		m := entity.NewStockMovement(
			entity.MovementPurchaseReceipt, product, qty(10),
			"goods_receipt", doc.GetID(), doc.GetPostedVersion()+1, doc.Date,
		).WithDestination(warehouse, nil, nil)
		m.UnitCost = types.MustMoney("5.00")
		set.AddStock(m)
		return set
	}

	require.NoError(t, h.engine.Post(ctx, doc, noopUpdate))

	assert.True(t, doc.IsPosted())
	assert.Equal(t, 1, doc.GetPostedVersion())

	key := entity.StockKey{ProductID: product, WarehouseID: warehouse}
	lvl := h.level(key)
	require.NotNil(t, lvl)
	assert.Equal(t, qty(10), lvl.QuantityOnHand)
	assert.True(t, types.MustMoney("5.00").Equal(lvl.UnitCost))

	require.Len(t, h.stockRepo.appended, 1)
	m := h.stockRepo.appended[0]
	assert.Equal(t, entity.MovementStatusCompleted, m.Status)
	assert.Equal(t, qty(10), m.RunningBalance)
	assert.True(t, types.MustMoney("50").Equal(m.TotalCost), "total %s", m.TotalCost)

	// Inbound feeds the cost layer stack.
	layers, _ := h.layerRepo.GetLayersForUpdate(ctx, product, warehouse, valuation.ConsumeOldestFirst)
	require.Len(t, layers, 1)
	assert.Equal(t, qty(10), layers[0].QuantityRemaining)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, "GoodsReceiptPosted", h.events.events[0].EventType)
	assert.Equal(t, doc.GetID(), h.events.events[0].AggregateID)

	assert.Equal(t, []string{"post"}, h.audit.actions)
}

func TestEngine_Post_AlreadyPosted(t *testing.T) {
	h := newHarness()

	doc := newTestDoc("GoodsReceipt", func() *MovementSet { return NewMovementSet() })
	doc.MarkPosted()

	err := h.engine.Post(context.Background(), doc, noopUpdate)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidStateTransition(err))
	assert.Zero(t, h.txManager.runs)
}

func TestEngine_Post_NoMovements(t *testing.T) {
	h := newHarness()

	doc := newTestDoc("StockAdjustment", func() *MovementSet { return NewMovementSet() })

	err := h.engine.Post(context.Background(), doc, noopUpdate)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.False(t, doc.IsPosted())
}

func TestEngine_Post_InsufficientStock(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	product, warehouse := id.New(), id.New()
	doc := newTestDoc("StockAdjustment", nil)
	doc.build = func() *MovementSet {
		set := NewMovementSet()
		set.AddStock(entity.NewStockMovement(
			entity.MovementNegativeAdjustment, product, qty(5),
			"stock_adjustment", doc.GetID(), doc.GetPostedVersion()+1, doc.Date,
		).WithSource(warehouse, nil, nil))
		return set
	}

	err := h.engine.Post(ctx, doc, noopUpdate)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.False(t, doc.IsPosted())
	assert.Empty(t, h.stockRepo.appended)
	assert.Empty(t, h.events.events)
}

func TestEngine_Post_ConcurrentAdjustments(t *testing.T) {
	repo := newLockingStockRepo()
	engine := NewEngine(
		stock.NewService(repo),
		valuation.NewEngine(newFakeLayerRepo(), valuation.MethodFIFO, nil),
		&lockingTxManager{},
		&fakeWarehouses{allowNegative: make(map[id.ID]bool)},
		&capturingPublisher{},
		&capturingAudit{},
	)

	product, warehouse := id.New(), id.New()
	key := entity.StockKey{ProductID: product, WarehouseID: warehouse}
	lvl := entity.NewStockLevel(key, time.Now().UTC())
	lvl.QuantityOnHand = qty(10)
	lvl.UnitCost = types.MustMoney("5.00")
	repo.levels[key.String()] = lvl

	// Two simultaneous issues of 7 against 10 on hand. Row locking
	// serializes them; the second sees 3 remaining and fails.
	docs := make([]*testDoc, 2)
	for i := range docs {
		doc := newTestDoc("StockAdjustment", nil)
		doc.build = func() *MovementSet {
			set := NewMovementSet()
			set.AddStock(entity.NewStockMovement(
				entity.MovementNegativeAdjustment, product, qty(7),
				"stock_adjustment", doc.GetID(), doc.GetPostedVersion()+1, doc.Date,
			).WithSource(warehouse, nil, nil))
			return set
		}
		docs[i] = doc
	}

	errs := make([]error, len(docs))
	var wg sync.WaitGroup
	for i := range docs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = engine.Post(context.Background(), docs[i], noopUpdate)
		}(i)
	}
	wg.Wait()

	var succeeded, failed int
	for i, err := range errs {
		if err == nil {
			succeeded++
			assert.True(t, docs[i].IsPosted())
			continue
		}
		failed++
		assert.True(t, apperror.IsInsufficientStock(err), "unexpected error: %v", err)
		assert.False(t, docs[i].IsPosted())
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	// Only the winner reached the ledger and the projection.
	assert.Equal(t, qty(3), lvl.QuantityOnHand)
	require.Len(t, repo.appended, 1)
	assert.Equal(t, qty(3), repo.appended[0].RunningBalance)
}

func TestEngine_Post_NegativeStockAllowed(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	product, warehouse := id.New(), id.New()
	h.warehouses.allowNegative[warehouse] = true

	doc := newTestDoc("StockAdjustment", nil)
	doc.build = func() *MovementSet {
		set := NewMovementSet()
		m := entity.NewStockMovement(
			entity.MovementNegativeAdjustment, product, qty(5),
			"stock_adjustment", doc.GetID(), doc.GetPostedVersion()+1, doc.Date,
		).WithSource(warehouse, nil, nil)
		m.UnitCost = types.MustMoney("3.00")
		set.AddStock(m)
		return set
	}

	require.NoError(t, h.engine.Post(ctx, doc, noopUpdate))

	lvl := h.level(entity.StockKey{ProductID: product, WarehouseID: warehouse})
	require.NotNil(t, lvl)
	assert.Equal(t, qty(-5), lvl.QuantityOnHand)

	// No layers existed; the whole issue is costed at the fallback.
	require.Len(t, h.stockRepo.appended, 1)
	assert.True(t, h.stockRepo.appended[0].Unlayered)
	assert.True(t, types.MustMoney("3.00").Equal(h.stockRepo.appended[0].UnitCost))
}

func TestEngine_Post_ExtraDeltas(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	product, warehouse := id.New(), id.New()
	key := entity.StockKey{ProductID: product, WarehouseID: warehouse}

	doc := newTestDoc("PurchaseOrder", nil)
	doc.build = func() *MovementSet {
		set := NewMovementSet()
		set.AddExtra(entity.LevelDelta{Key: key, OnOrder: qty(20)})
		set.SetEvent("PurchaseOrderApproved")
		return set
	}

	require.NoError(t, h.engine.Post(ctx, doc, noopUpdate))

	lvl := h.level(key)
	require.NotNil(t, lvl)
	assert.Equal(t, qty(20), lvl.QuantityOnOrder)
	assert.True(t, lvl.QuantityOnHand.IsZero())
	assert.Empty(t, h.stockRepo.appended)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, "PurchaseOrderApproved", h.events.events[0].EventType)
}

func TestEngine_Post_RetriesExhausted(t *testing.T) {
	h := newHarness()
	h.txManager.failWith = &pgconn.PgError{Code: "40P01"}

	product, warehouse := id.New(), id.New()
	doc := newTestDoc("GoodsReceipt", nil)
	doc.build = func() *MovementSet {
		set := NewMovementSet()
		m := entity.NewStockMovement(
			entity.MovementPurchaseReceipt, product, qty(1),
			"goods_receipt", doc.GetID(), doc.GetPostedVersion()+1, doc.Date,
		).WithDestination(warehouse, nil, nil)
		m.UnitCost = types.MustMoney("1.00")
		set.AddStock(m)
		return set
	}

	err := h.engine.Post(context.Background(), doc, noopUpdate)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodePostingFailure, appErr.Code)
	assert.Equal(t, DefaultMaxRetries, h.txManager.runs)

	// The status flip from the failed attempts is rolled back.
	assert.False(t, doc.IsPosted())
}

func TestEngine_Post_NonRetryableError(t *testing.T) {
	h := newHarness()
	h.txManager.failWith = &pgconn.PgError{Code: "23505"}

	product, warehouse := id.New(), id.New()
	doc := newTestDoc("GoodsReceipt", nil)
	doc.build = func() *MovementSet {
		set := NewMovementSet()
		m := entity.NewStockMovement(
			entity.MovementPurchaseReceipt, product, qty(1),
			"goods_receipt", doc.GetID(), doc.GetPostedVersion()+1, doc.Date,
		).WithDestination(warehouse, nil, nil)
		m.UnitCost = types.MustMoney("1.00")
		set.AddStock(m)
		return set
	}

	err := h.engine.Post(context.Background(), doc, noopUpdate)
	require.Error(t, err)
	assert.Equal(t, 1, h.txManager.runs)
}

func TestEngine_Execute_NoMovements(t *testing.T) {
	h := newHarness()

	err := h.engine.Execute(context.Background(), &Operation{
		DocumentType: "Transfer",
		DocumentID:   id.New(),
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestEngine_Unpost(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	product, warehouse := id.New(), id.New()
	doc := newTestDoc("GoodsReceipt", nil)
	doc.build = func() *MovementSet {
		set := NewMovementSet()
		m := entity.NewStockMovement(
			entity.MovementPurchaseReceipt, product, qty(10),
			"goods_receipt", doc.GetID(), doc.GetPostedVersion()+1, doc.Date,
		).WithDestination(warehouse, nil, nil)
		m.UnitCost = types.MustMoney("5.00")
		set.AddStock(m)
		return set
	}

	require.NoError(t, h.engine.Post(ctx, doc, noopUpdate))
	require.NoError(t, h.engine.Unpost(ctx, doc, noopUpdate))

	assert.False(t, doc.IsPosted())

	key := entity.StockKey{ProductID: product, WarehouseID: warehouse}
	lvl := h.level(key)
	require.NotNil(t, lvl)
	assert.True(t, lvl.QuantityOnHand.IsZero())

	// Original flipped to reversed, compensating entry appended at the
	// original cost.
	require.Len(t, h.stockRepo.appended, 2)
	assert.Equal(t, entity.MovementStatusReversed, h.stockRepo.appended[0].Status)

	rev := h.stockRepo.appended[1]
	assert.Equal(t, entity.MovementStatusCompleted, rev.Status)
	assert.Equal(t, entity.MovementNegativeAdjustment, rev.MovementType)
	require.NotNil(t, rev.ReversalOf)
	assert.Equal(t, h.stockRepo.appended[0].LineID, *rev.ReversalOf)
	assert.True(t, types.MustMoney("5.00").Equal(rev.UnitCost))

	// Layers created by the receipt are consumed again.
	layers, _ := h.layerRepo.GetLayersForUpdate(ctx, product, warehouse, valuation.ConsumeOldestFirst)
	assert.Empty(t, layers)

	require.Len(t, h.events.events, 2)
	assert.Equal(t, "GoodsReceiptUnposted", h.events.events[1].EventType)
	assert.Equal(t, []string{"post", "unpost"}, h.audit.actions)
}

func TestEngine_Unpost_NotPosted(t *testing.T) {
	h := newHarness()

	doc := newTestDoc("GoodsReceipt", func() *MovementSet { return NewMovementSet() })

	err := h.engine.Unpost(context.Background(), doc, noopUpdate)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
}
