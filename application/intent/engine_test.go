package intent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"factoryops/domain/factory"
	"factoryops/domain/intent"
	"factoryops/infrastructure/persistence/mocks"
	"factoryops/infrastructure/rules"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	operator = intent.Actor{ID: "op-7", Role: "operator"}
)

// ============================================================================
// Fixture
// ============================================================================

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store      *mocks.Store
	clock      *clock
	engine     *Engine
	dispatcher *Dispatcher
}

type fixtureOption func(cfg *Config, deps *Dependencies)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	clk := &clock{t: fixedNow}
	store := mocks.NewSeededStore(fixedNow)

	eval, err := rules.Default(rules.WithClock(clk.Now))
	require.NoError(t, err)

	cfg := Config{Policy: intent.FailOpen}
	deps := Dependencies{
		Entities:  factory.NewEntityStore(store.Repositories()),
		Tokens:    store.Tokens(),
		Mutations: store.Mutations(),
		UoW:       store.UnitOfWork(),
		Evaluator: eval,
		Now:       clk.Now,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	engine := NewEngine(cfg, deps)
	return &fixture{
		store:  store,
		clock:  clk,
		engine: engine,
		dispatcher: NewDispatcher(engine,
			NewDataOpHandler(engine, nil),
			NewMaterialHandler(engine, nil),
			NewQueryHandler(engine, nil),
		),
	}
}

func (f *fixture) material(t *testing.T, id string) *factory.MaterialBatch {
	t.Helper()
	m, err := f.store.Repositories().MaterialBatches.FindByID(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (f *fixture) token(t *testing.T, value string) *intent.PreviewToken {
	t.Helper()
	tok, err := f.store.Tokens().Find(context.Background(), value)
	require.NoError(t, err)
	return tok
}

func useMaterial(id string, qty any) intent.Request {
	return intent.Request{
		IntentCode: "MATERIAL_BATCH_USE",
		Category:   intent.CategoryMaterial,
		Context:    map[string]any{intent.KeyEntityIdentifier: id, intent.KeyQuantity: qty},
		Actor:      operator,
	}
}

func updateEntity(entityType, key string, updates map[string]any) intent.Request {
	return intent.Request{
		IntentCode: IntentEntityUpdate,
		Category:   intent.CategoryDataOp,
		Context: map[string]any{
			intent.KeyEntityType:       entityType,
			intent.KeyEntityIdentifier: key,
			intent.KeyUpdates:          updates,
		},
		Actor: operator,
	}
}

func dec(v any) string {
	return v.(decimal.Decimal).String()
}

// countingRepository counts entity lookups.
type countingRepository struct {
	intent.EntityRepository
	lookups *atomic.Int64
}

func (c countingRepository) FindByID(ctx context.Context, id string) (intent.Entity, error) {
	c.lookups.Add(1)
	return c.EntityRepository.FindByID(ctx, id)
}

func (c countingRepository) FindByBusinessKey(ctx context.Context, key string) (intent.Entity, error) {
	c.lookups.Add(1)
	return c.EntityRepository.FindByBusinessKey(ctx, key)
}

// ============================================================================
// Preview and confirm
// ============================================================================

func TestPreviewThenConfirmUsesMaterial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	preview := f.dispatcher.Preview(ctx, useMaterial("MB-2024-001", 200))
	require.Equal(t, intent.StatusPreview, preview.Status, preview.Message)
	require.NotNil(t, preview.ConfirmableAction)
	assert.False(t, preview.ConfirmableAction.Informational)
	assert.EqualValues(t, 300, preview.ConfirmableAction.ExpiresInSeconds)
	assert.Equal(t, "Use material", preview.IntentName)
	assert.Equal(t, "500", f.material(t, "mb-001").Quantity.String(), "preview must not apply anything")

	token := preview.ConfirmableAction.Token
	assert.Equal(t, intent.TokenPending, f.token(t, token).State)

	done := f.dispatcher.Confirm(ctx, token, operator)
	require.Equal(t, intent.StatusCompleted, done.Status, done.Message)
	assert.Equal(t, "MATERIAL_BATCH_USE", done.IntentCode)
	assert.Equal(t, intent.CategoryMaterial, done.IntentCategory)

	m := f.material(t, "mb-001")
	assert.Equal(t, "300", m.Quantity.String())
	assert.Equal(t, "200", m.UsedQuantity.String())
	assert.Equal(t, operator.ID, m.UpdatedBy)

	require.Len(t, done.AffectedEntities, 1)
	rec := done.AffectedEntities[0]
	assert.Equal(t, intent.ActionUsed, rec.Action)
	assert.Equal(t, "500", dec(rec.Changes.OldValues["quantity"]))
	assert.Equal(t, "300", dec(rec.Changes.NewValues["quantity"]))
	assert.Equal(t, intent.TokenConsumed, f.token(t, token).State)

	again := f.dispatcher.Confirm(ctx, token, operator)
	assert.Equal(t, intent.StatusFailed, again.Status)
	assert.Equal(t, "TOKEN_ALREADY_USED", again.ErrorCode)
	assert.Equal(t, "300", f.material(t, "mb-001").Quantity.String())
}

func TestConfirmAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	preview := f.dispatcher.Preview(ctx, useMaterial("MB-2024-001", 200))
	require.Equal(t, intent.StatusPreview, preview.Status, preview.Message)
	token := preview.ConfirmableAction.Token

	f.clock.Advance(intent.DefaultTokenTTL + time.Second)

	out := f.dispatcher.Confirm(ctx, token, operator)
	assert.Equal(t, intent.StatusFailed, out.Status)
	assert.Equal(t, "TOKEN_EXPIRED", out.ErrorCode)
	assert.Equal(t, intent.TokenExpired, f.token(t, token).State)
	assert.Equal(t, "500", f.material(t, "mb-001").Quantity.String())

	// an expired token stays expired
	out = f.dispatcher.Confirm(ctx, token, operator)
	assert.Equal(t, "TOKEN_EXPIRED", out.ErrorCode)
}

func TestConsumedTokenStaysUsedAfterItsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	preview := f.dispatcher.Preview(ctx, useMaterial("MB-2024-001", 200))
	require.Equal(t, intent.StatusPreview, preview.Status, preview.Message)
	token := preview.ConfirmableAction.Token

	done := f.dispatcher.Confirm(ctx, token, operator)
	require.Equal(t, intent.StatusCompleted, done.Status, done.Message)

	f.clock.Advance(intent.DefaultTokenTTL + time.Second)

	again := f.dispatcher.Confirm(ctx, token, operator)
	assert.Equal(t, intent.StatusFailed, again.Status)
	assert.Equal(t, "TOKEN_ALREADY_USED", again.ErrorCode)
	assert.Equal(t, intent.TokenConsumed, f.token(t, token).State)
	assert.Equal(t, "300", f.material(t, "mb-001").Quantity.String())
}

func TestConfirmAtLastMomentSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pr, err := f.engine.Preview(ctx, useMaterial("MB-2024-001", 200), Change{
		Target:    intent.Reference{Type: "MATERIAL_BATCH", BusinessKey: "MB-2024-001"},
		Operation: "USE",
		Updates:   intent.FieldUpdates{{Field: "quantity", Value: 200}},
	})
	require.NoError(t, err)

	f.clock.Advance(intent.DefaultTokenTTL)
	_, err = f.engine.Confirm(ctx, pr.Token.Value, operator)
	require.NoError(t, err)
}

func TestConcurrentConfirmHasExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	preview := f.dispatcher.Preview(ctx, useMaterial("MB-2024-001", 200))
	require.Equal(t, intent.StatusPreview, preview.Status, preview.Message)
	token := preview.ConfirmableAction.Token

	const callers = 8
	var (
		wg       sync.WaitGroup
		won      atomic.Int64
		lostUsed atomic.Int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Confirm(ctx, token, operator)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, intent.ErrTokenAlreadyUsed):
				lostUsed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, won.Load())
	assert.EqualValues(t, callers-1, lostUsed.Load())
	assert.Equal(t, "300", f.material(t, "mb-001").Quantity.String())

	recs, err := f.store.Mutations().ListByEntity(ctx, intent.EntityMaterialBatch, "mb-001", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestConfirmByAnotherActorIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	preview := f.dispatcher.Preview(ctx, useMaterial("MB-2024-001", 200))
	require.Equal(t, intent.StatusPreview, preview.Status, preview.Message)
	token := preview.ConfirmableAction.Token

	out := f.dispatcher.Confirm(ctx, token, intent.Actor{ID: "intruder"})
	assert.Equal(t, "TOKEN_NOT_FOUND", out.ErrorCode)
	assert.Equal(t, intent.TokenPending, f.token(t, token).State)

	out = f.dispatcher.Confirm(ctx, token, operator)
	assert.Equal(t, intent.StatusCompleted, out.Status, out.Message)
}

func TestConfirmUnknownToken(t *testing.T) {
	f := newFixture(t)
	out := f.dispatcher.Confirm(context.Background(), "no-such-token", operator)
	assert.Equal(t, intent.StatusFailed, out.Status)
	assert.Equal(t, "TOKEN_NOT_FOUND", out.ErrorCode)

	out = f.dispatcher.Confirm(context.Background(), " ", operator)
	assert.Equal(t, intent.StatusNeedMoreInfo, out.Status)
	assert.Equal(t, []string{"token"}, out.MissingFields)
}

func TestConfirmRevalidatesAgainstLiveEntity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	preview := f.dispatcher.Preview(ctx, useMaterial("MB-2024-001", 200))
	require.Equal(t, intent.StatusPreview, preview.Status, preview.Message)
	token := preview.ConfirmableAction.Token

	// someone reserves most of the batch in between
	m := f.material(t, "mb-001")
	m.ReservedQuantity = decimal.NewFromInt(400)
	require.NoError(t, f.store.Repositories().MaterialBatches.Save(ctx, m))

	out := f.dispatcher.Confirm(ctx, token, operator)
	assert.Equal(t, intent.StatusValidationFailed, out.Status)
	require.NotNil(t, out.Validation)
	assert.Equal(t, "insufficient_stock", out.Validation.Blocking()[0].Rule)
	assert.Equal(t, "500", f.material(t, "mb-001").Quantity.String())
	assert.Equal(t, intent.TokenPending, f.token(t, token).State)
}

func TestConfirmationRequiredIntent(t *testing.T) {
	f := newFixture(t, func(cfg *Config, _ *Dependencies) {
		cfg.ConfirmRequired = []string{"material_batch_consume"}
	})
	ctx := context.Background()

	req := intent.Request{
		IntentCode: "MATERIAL_BATCH_CONSUME",
		Category:   intent.CategoryMaterial,
		Context:    map[string]any{intent.KeyEntityIdentifier: "MB-2024-002", intent.KeyQuantity: "50"},
		Actor:      operator,
	}
	out := f.dispatcher.Execute(ctx, req)
	require.Equal(t, intent.StatusNeedConfirm, out.Status, out.Message)
	assert.True(t, out.RequiresApproval)
	require.NotNil(t, out.ConfirmableAction)
	assert.Equal(t, "1000", f.material(t, "mb-002").Quantity.String())

	done := f.dispatcher.Confirm(ctx, out.ConfirmableAction.Token, operator)
	require.Equal(t, intent.StatusCompleted, done.Status, done.Message)
	m := f.material(t, "mb-002")
	assert.Equal(t, "950", m.Quantity.String())
	assert.Equal(t, "150", m.ReservedQuantity.String())
	assert.Equal(t, "50", m.UsedQuantity.String())
	assert.Equal(t, intent.ActionConsumed, done.AffectedEntities[0].Action)
}

func TestTokenStoreDownIssuesInformationalPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Fail(mocks.FailTokens, errors.New("token table locked"))

	out := f.dispatcher.Preview(ctx, useMaterial("MB-2024-001", 200))
	require.Equal(t, intent.StatusPreview, out.Status, out.Message)
	require.NotNil(t, out.ConfirmableAction)
	assert.True(t, out.ConfirmableAction.Informational)

	f.store.Fail(mocks.FailTokens, nil)
	done := f.dispatcher.Confirm(ctx, out.ConfirmableAction.Token, operator)
	assert.Equal(t, "TOKEN_NOT_FOUND", done.ErrorCode)
	assert.Equal(t, "500", f.material(t, "mb-001").Quantity.String())
}

func TestPreviewRejectedByRulesIssuesNoToken(t *testing.T) {
	f := newFixture(t)

	out := f.dispatcher.Preview(context.Background(), useMaterial("MB-2023-099", 10))
	assert.Equal(t, intent.StatusValidationFailed, out.Status)
	assert.Nil(t, out.ConfirmableAction)
	assert.Contains(t, out.Message, "expired")
	assert.Equal(t, "VALIDATION_REJECTED", out.ErrorCode)
}

// ============================================================================
// Direct execution
// ============================================================================

func TestBusinessKeyFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := intent.Request{
		IntentCode: IntentEntityUpdate,
		Category:   intent.CategoryDataOp,
		Context: map[string]any{
			intent.KeyEntityType: "product",
			intent.KeyEntityID:   "PT-F001-001",
			intent.KeyUpdates:    map[string]any{"standard_price": "19.80"},
		},
		Actor: operator,
	}
	out := f.dispatcher.Execute(ctx, req)
	require.Equal(t, intent.StatusCompleted, out.Status, out.Message)

	p, err := f.store.Repositories().ProductTypes.FindByID(ctx, "pt-001")
	require.NoError(t, err)
	assert.True(t, p.StandardPrice.Equal(decimal.RequireFromString("19.80")))
	assert.Equal(t, "pt-001", out.AffectedEntities[0].EntityID)
}

func TestUnresolvableReference(t *testing.T) {
	f := newFixture(t)

	out := f.dispatcher.Execute(context.Background(), updateEntity("PRODUCT_TYPE", "PT-NOPE", map[string]any{"name": "x"}))
	assert.Equal(t, intent.StatusFailed, out.Status)
	assert.Equal(t, "ENTITY_NOT_FOUND", out.ErrorCode)
	assert.Contains(t, out.Message, "PT-NOPE")

	out = f.dispatcher.Execute(context.Background(), updateEntity("WAREHOUSE", "W-1", map[string]any{"name": "x"}))
	assert.Equal(t, "UNKNOWN_ENTITY_TYPE", out.ErrorCode)
}

func TestReferenceWithoutKeyIsAmbiguous(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.Resolver().Resolve(context.Background(), intent.Reference{Type: "PRODUCT_TYPE"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, intent.ErrAmbiguousReference))

	req := intent.Request{
		IntentCode: IntentEntityUpdate,
		Category:   intent.CategoryDataOp,
		Context: map[string]any{
			intent.KeyEntityType: "PRODUCT_TYPE",
			intent.KeyUpdates:    map[string]any{"name": "x"},
		},
		Actor: operator,
	}
	out := f.dispatcher.Execute(context.Background(), req)
	assert.Equal(t, intent.StatusNeedMoreInfo, out.Status)
	assert.Equal(t, []string{intent.KeyEntityIdentifier}, out.MissingFields)
}

func TestEmptyUpdatesNeverResolve(t *testing.T) {
	var lookups atomic.Int64
	f := newFixture(t, func(_ *Config, deps *Dependencies) {
		inner := deps.Entities
		var repos []intent.EntityRepository
		for _, typ := range inner.Types() {
			r, err := inner.Repository(typ)
			require.NoError(t, err)
			repos = append(repos, countingRepository{EntityRepository: r, lookups: &lookups})
		}
		deps.Entities = intent.NewEntityStore(repos...)
	})
	ctx := context.Background()
	ch := Change{
		Target:    intent.Reference{Type: "PRODUCT_TYPE", BusinessKey: "PT-F001-001"},
		Operation: OperationUpdate,
	}

	_, err := f.engine.Execute(ctx, intent.Request{Actor: operator}, ch)
	assert.ErrorIs(t, err, intent.ErrMissingRequiredField)
	_, err = f.engine.Preview(ctx, intent.Request{Actor: operator}, ch)
	assert.ErrorIs(t, err, intent.ErrMissingRequiredField)

	out := f.dispatcher.Execute(ctx, updateEntity("PRODUCT_TYPE", "PT-F001-001", map[string]any{}))
	assert.Equal(t, intent.StatusNeedMoreInfo, out.Status)
	assert.Equal(t, []string{intent.KeyUpdates}, out.MissingFields)

	assert.Zero(t, lookups.Load())
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.dispatcher.Execute(ctx, updateEntity("PRODUCT_TYPE", "PT-F002-001",
		map[string]any{"name": "Veg Spring Rolls", "colour": "green"}))
	require.Equal(t, intent.StatusCompleted, out.Status, out.Message)
	assert.Equal(t, []string{"colour"}, out.AffectedEntities[0].Skipped)
	assert.Contains(t, out.Message, "ignored unknown fields: colour")

	out = f.dispatcher.Execute(ctx, updateEntity("PRODUCT_TYPE", "PT-F002-001", map[string]any{"colour": "green"}))
	assert.Equal(t, intent.StatusNeedMoreInfo, out.Status)
	assert.Equal(t, "INVALID_FIELD_VALUE", out.ErrorCode)
	assert.Equal(t, []string{intent.KeyUpdates}, out.MissingFields)
}

func TestInvalidValueFailsWholeUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.dispatcher.Execute(ctx, updateEntity("PRODUCT_TYPE", "PT-F001-001",
		map[string]any{"name": "Renamed", "shelfLifeDays": "a while"}))
	assert.Equal(t, intent.StatusNeedMoreInfo, out.Status)
	assert.Equal(t, []string{"shelfLifeDays"}, out.MissingFields)

	p, err := f.store.Repositories().ProductTypes.FindByID(ctx, "pt-001")
	require.NoError(t, err)
	assert.Equal(t, "Pork Dumplings", p.Name)
}

func TestDeactivationWithBatchesIsBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.dispatcher.Execute(ctx, updateEntity("PRODUCT_TYPE", "PT-F001-001", map[string]any{"status": "inactive"}))
	assert.Equal(t, intent.StatusValidationFailed, out.Status)
	assert.Contains(t, out.Message, "product type Pork Dumplings (PT-F001-001) still has 2 production batches")
	require.NotNil(t, out.Validation)
	assert.NotEmpty(t, out.Validation.Recommendations)

	p, err := f.store.Repositories().ProductTypes.FindByID(ctx, "pt-001")
	require.NoError(t, err)
	assert.Equal(t, factory.ProductTypeActive, p.Status)

	recs, err := f.store.Mutations().ListByEntity(ctx, intent.EntityProductType, "pt-001", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDecimalValuesStayExact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.dispatcher.Execute(ctx, updateEntity("PRODUCTION_PLAN", "PP-2024-001",
		map[string]any{"plannedQuantity": "123.45"}))
	require.Equal(t, intent.StatusCompleted, out.Status, out.Message)

	p, err := f.store.Repositories().ProductionPlans.FindByID(ctx, "pp-001")
	require.NoError(t, err)
	assert.Equal(t, "123.45", p.PlannedQuantity.String())
	assert.Equal(t, "123.45", dec(out.AffectedEntities[0].Changes.NewValues["plannedQuantity"]))
}

func TestUndoRestoresPreviousValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.dispatcher.Execute(ctx, updateEntity("PRODUCTION_PLAN", "PP-2024-001",
		map[string]any{"plannedQuantity": "1200.5", "priority": 3}))
	require.Equal(t, intent.StatusCompleted, out.Status, out.Message)
	require.Len(t, out.SuggestedActions, 1)

	undo := out.SuggestedActions[0]
	assert.Equal(t, IntentUndo, undo.Code)
	f.clock.Advance(time.Minute)
	back := f.dispatcher.Execute(ctx, intent.Request{
		IntentCode: undo.Code,
		Category:   intent.CategoryDataOp,
		Context:    undo.Params,
		Actor:      operator,
	})
	require.Equal(t, intent.StatusCompleted, back.Status, back.Message)

	p, err := f.store.Repositories().ProductionPlans.FindByID(ctx, "pp-001")
	require.NoError(t, err)
	assert.Equal(t, "1000", p.PlannedQuantity.String())
	assert.EqualValues(t, 1, p.Priority)

	recs, err := f.engine.History(ctx, intent.Reference{Type: "PLAN", BusinessKey: "PP-2024-001"}, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, IntentUndo, recs[0].IntentCode)
}

func TestEntityStoreFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Fail(mocks.FailEntities, errors.New("connection refused"))

	out := f.dispatcher.Execute(ctx, useMaterial("MB-2024-001", 200))
	assert.Equal(t, intent.StatusFailed, out.Status)
	assert.Equal(t, "INTERNAL_ERROR", out.ErrorCode)
	assert.NotContains(t, out.Message, "connection refused")

	f.store.Fail(mocks.FailEntities, nil)
	assert.Equal(t, "500", f.material(t, "mb-001").Quantity.String())
}

func TestAuditFailureRollsBackMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Fail(mocks.FailMutations, errors.New("disk full"))

	out := f.dispatcher.Execute(ctx, useMaterial("MB-2024-001", 200))
	assert.Equal(t, intent.StatusFailed, out.Status)
	assert.Equal(t, "INTERNAL_ERROR", out.ErrorCode)

	f.store.Fail(mocks.FailMutations, nil)
	assert.Equal(t, "500", f.material(t, "mb-001").Quantity.String())
}

func TestStockOperationRestrictedToMaterialBatches(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Execute(context.Background(), intent.Request{Actor: operator}, Change{
		Target:    intent.Reference{Type: "PRODUCT_TYPE", BusinessKey: "PT-F001-001"},
		Operation: "USE",
		Updates:   intent.FieldUpdates{{Field: "quantity", Value: 1}},
	})
	assert.ErrorIs(t, err, intent.ErrUnsupportedOperation)
}

func TestPruneTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.dispatcher.Preview(ctx, useMaterial("MB-2024-001", 200))
	require.Equal(t, intent.StatusPreview, out.Status, out.Message)

	n, err := f.engine.PruneTokens(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(2 * time.Hour)
	n, err = f.engine.PruneTokens(ctx, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

// ============================================================================
// Related record counts
// ============================================================================

// overlapRepository exposes counters that record how many run at once.
type overlapRepository struct {
	intent.EntityRepository
	inFlight, peak *atomic.Int64
}

func (r overlapRepository) Counters() []intent.Counter {
	count := func(ctx context.Context, _ intent.Entity) (int64, error) {
		n := r.inFlight.Add(1)
		defer r.inFlight.Add(-1)
		for {
			p := r.peak.Load()
			if n <= p || r.peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return 1, nil
	}
	return []intent.Counter{
		{Name: "plans", Count: count},
		{Name: "batches", Count: count},
		{Name: "materials", Count: count},
	}
}

func TestRelatedCountsRunOneAtATimeInsideTransaction(t *testing.T) {
	store := mocks.NewSeededStore(fixedNow)
	repo := overlapRepository{inFlight: &atomic.Int64{}, peak: &atomic.Int64{}}

	err := store.UnitOfWork().Execute(context.Background(), func(ctx context.Context) error {
		related, err := countRelated(ctx, repo, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, map[string]int64{"plans": 1, "batches": 1, "materials": 1}, related)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, repo.peak.Load())

	related, err := countRelated(context.Background(), repo, nil)
	require.NoError(t, err)
	assert.Len(t, related, 3)
}
