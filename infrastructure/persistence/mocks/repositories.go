package mocks

import (
	"context"
	"sort"
	"time"

	"factoryops/domain/factory"
	"factoryops/domain/intent"
	"factoryops/domain/shared"

	"github.com/google/uuid"
)

// recordRepository serves one table of the store.
type recordRepository[E any] struct {
	store  *Store
	entity string
	pick   func(*state) *table[E]
}

func (r *recordRepository[E]) FindByID(ctx context.Context, id string) (E, error) {
	var out E
	err := r.store.do(ctx, FailEntities, func(st *state) error {
		v, ok := r.pick(st).byID(id)
		if !ok {
			return shared.NewNotFoundError(r.entity, id)
		}
		out = v
		return nil
	})
	return out, err
}

func (r *recordRepository[E]) FindByBusinessKey(ctx context.Context, key string) (E, error) {
	var out E
	err := r.store.do(ctx, FailEntities, func(st *state) error {
		v, ok := r.pick(st).byKey(key)
		if !ok {
			return shared.NewNotFoundError(r.entity, key)
		}
		out = v
		return nil
	})
	return out, err
}

func (r *recordRepository[E]) Save(ctx context.Context, e E) error {
	return r.store.do(ctx, FailEntities, func(st *state) error {
		r.pick(st).put(e)
		return nil
	})
}

func (r *recordRepository[E]) count(ctx context.Context, match func(*state) int64) (int64, error) {
	var n int64
	err := r.store.do(ctx, FailEntities, func(st *state) error {
		n = match(st)
		return nil
	})
	return n, err
}

type productTypeRepository struct {
	recordRepository[*factory.ProductType]
}

type productionPlanRepository struct {
	recordRepository[*factory.ProductionPlan]
}

func (r *productionPlanRepository) CountActiveByProductType(ctx context.Context, productTypeID string) (int64, error) {
	return r.count(ctx, func(st *state) int64 {
		return st.plans.count(func(p *factory.ProductionPlan) bool {
			return p.ProductTypeID == productTypeID &&
				p.Status != factory.PlanCompleted && p.Status != factory.PlanCancelled
		})
	})
}

type productionBatchRepository struct {
	recordRepository[*factory.ProductionBatch]
}

func (r *productionBatchRepository) CountByProductType(ctx context.Context, productTypeID string) (int64, error) {
	return r.count(ctx, func(st *state) int64 {
		return st.batches.count(func(b *factory.ProductionBatch) bool { return b.ProductTypeID == productTypeID })
	})
}

func (r *productionBatchRepository) CountByPlan(ctx context.Context, planID string) (int64, error) {
	return r.count(ctx, func(st *state) int64 {
		return st.batches.count(func(b *factory.ProductionBatch) bool { return b.PlanID == planID })
	})
}

type materialBatchRepository struct {
	recordRepository[*factory.MaterialBatch]
}

// Repositories returns the production repositories backed by the store.
func (s *Store) Repositories() factory.Repositories {
	return factory.Repositories{
		ProductTypes: &productTypeRepository{recordRepository[*factory.ProductType]{
			store: s, entity: "product_type", pick: func(st *state) *table[*factory.ProductType] { return st.productTypes }}},
		ProductionPlans: &productionPlanRepository{recordRepository[*factory.ProductionPlan]{
			store: s, entity: "production_plan", pick: func(st *state) *table[*factory.ProductionPlan] { return st.plans }}},
		ProductionBatches: &productionBatchRepository{recordRepository[*factory.ProductionBatch]{
			store: s, entity: "production_batch", pick: func(st *state) *table[*factory.ProductionBatch] { return st.batches }}},
		MaterialBatches: &materialBatchRepository{recordRepository[*factory.MaterialBatch]{
			store: s, entity: "material_batch", pick: func(st *state) *table[*factory.MaterialBatch] { return st.materials }}},
	}
}

// ============================================================================
// Tokens
// ============================================================================

// TokenRepository In-memory intent.TokenRepository
type TokenRepository struct {
	store *Store
}

func (s *Store) Tokens() *TokenRepository {
	return &TokenRepository{store: s}
}

func (r *TokenRepository) Create(ctx context.Context, token *intent.PreviewToken) error {
	return r.store.do(ctx, FailTokens, func(st *state) error {
		if _, dup := st.tokens[token.Value]; dup {
			return shared.NewConflictError("preview_token", "token value already issued")
		}
		st.tokens[token.Value] = *token
		return nil
	})
}

func (r *TokenRepository) Find(ctx context.Context, value string) (*intent.PreviewToken, error) {
	var out *intent.PreviewToken
	err := r.store.do(ctx, FailTokens, func(st *state) error {
		t, ok := st.tokens[value]
		if !ok {
			return shared.NewNotFoundError("preview_token", value)
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *TokenRepository) Consume(ctx context.Context, value string, at time.Time) (bool, error) {
	var won bool
	err := r.store.do(ctx, FailTokens, func(st *state) error {
		t, ok := st.tokens[value]
		if !ok || t.State != intent.TokenPending || t.ExpiredAt(at) {
			return nil
		}
		t.State = intent.TokenConsumed
		t.ConsumedAt = &at
		st.tokens[value] = t
		won = true
		return nil
	})
	return won, err
}

func (r *TokenRepository) Expire(ctx context.Context, value string, at time.Time) (bool, error) {
	var won bool
	err := r.store.do(ctx, FailTokens, func(st *state) error {
		t, ok := st.tokens[value]
		if !ok || t.State != intent.TokenPending {
			return nil
		}
		t.State = intent.TokenExpired
		st.tokens[value] = t
		won = true
		return nil
	})
	return won, err
}

func (r *TokenRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.store.do(ctx, FailTokens, func(st *state) error {
		for k, t := range st.tokens {
			consumedBefore := t.State == intent.TokenConsumed && t.ConsumedAt != nil && t.ConsumedAt.Before(before)
			if t.ExpiresAt.Before(before) || consumedBefore {
				delete(st.tokens, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

// ============================================================================
// Mutation log
// ============================================================================

// MutationLog In-memory intent.MutationLog
type MutationLog struct {
	store *Store
}

func (s *Store) Mutations() *MutationLog {
	return &MutationLog{store: s}
}

func (l *MutationLog) Append(ctx context.Context, rec *intent.MutationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return l.store.do(ctx, FailMutations, func(st *state) error {
		st.mutations = append(st.mutations, *rec)
		return nil
	})
}

func (l *MutationLog) ListByEntity(ctx context.Context, t intent.EntityType, id string, limit int) ([]intent.MutationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []intent.MutationRecord
	err := l.store.do(ctx, FailMutations, func(st *state) error {
		for _, rec := range st.mutations {
			if rec.EntityType == t && rec.EntityID == id {
				out = append(out, rec)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// ============================================================================
// Unit of work
// ============================================================================

// UnitOfWork Snapshot-and-swap transactions over the store
type UnitOfWork struct {
	store *Store
}

func (s *Store) UnitOfWork() *UnitOfWork {
	return &UnitOfWork{store: s}
}

func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return u.store.runInTransaction(ctx, fn)
}

// Compile-time interface checks
var (
	_ factory.ProductTypeRepository     = (*productTypeRepository)(nil)
	_ factory.ProductionPlanRepository  = (*productionPlanRepository)(nil)
	_ factory.ProductionBatchRepository = (*productionBatchRepository)(nil)
	_ factory.MaterialBatchRepository   = (*materialBatchRepository)(nil)
	_ intent.TokenRepository            = (*TokenRepository)(nil)
	_ intent.MutationLog                = (*MutationLog)(nil)
	_ shared.UnitOfWork                 = (*UnitOfWork)(nil)
)
