package gormdb

import (
	"context"
	"errors"

	"factoryops/domain/factory"
	"factoryops/domain/shared"
	"factoryops/infrastructure/persistence"

	"gorm.io/gorm"
)

// recordRepository is the lookup/save core shared by every production record
// repository. P is the persistence object, E the domain record.
type recordRepository[E any, P any] struct {
	db       *gorm.DB
	entity   string
	keyCol   string
	toPO     func(E) *P
	toDomain func(*P) E
}

// getDB returns the transaction from context if available, otherwise the default db
func (r *recordRepository[E, P]) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *recordRepository[E, P]) findBy(ctx context.Context, col, value string) (E, error) {
	var zero E
	var po P
	err := r.getDB(ctx).Where(col+" = ?", value).Take(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, shared.NewNotFoundError(r.entity, value)
		}
		return zero, shared.NewUnavailableError(r.entity, err)
	}
	return r.toDomain(&po), nil
}

func (r *recordRepository[E, P]) FindByID(ctx context.Context, id string) (E, error) {
	return r.findBy(ctx, "id", id)
}

func (r *recordRepository[E, P]) FindByBusinessKey(ctx context.Context, key string) (E, error) {
	return r.findBy(ctx, r.keyCol, key)
}

// Save upserts the full row. The mutator always loads before it saves, so a
// full-row write carries no stale columns.
func (r *recordRepository[E, P]) Save(ctx context.Context, e E) error {
	if err := r.getDB(ctx).Save(r.toPO(e)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError(r.entity, "duplicate "+r.keyCol)
		}
		return shared.NewUnavailableError(r.entity, err)
	}
	return nil
}

func (r *recordRepository[E, P]) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	var model P
	if err := r.getDB(ctx).Model(&model).Where(query, args...).Count(&n).Error; err != nil {
		return 0, shared.NewUnavailableError(r.entity, err)
	}
	return n, nil
}

// ============================================================================
// Concrete repositories
// ============================================================================

type ProductTypeRepository struct {
	recordRepository[*factory.ProductType, ProductTypePO]
}

func NewProductTypeRepository(db *gorm.DB) *ProductTypeRepository {
	return &ProductTypeRepository{recordRepository[*factory.ProductType, ProductTypePO]{
		db: db, entity: "product_type", keyCol: "code",
		toPO: productTypeToPO, toDomain: (*ProductTypePO).toDomain,
	}}
}

type ProductionPlanRepository struct {
	recordRepository[*factory.ProductionPlan, ProductionPlanPO]
}

func NewProductionPlanRepository(db *gorm.DB) *ProductionPlanRepository {
	return &ProductionPlanRepository{recordRepository[*factory.ProductionPlan, ProductionPlanPO]{
		db: db, entity: "production_plan", keyCol: "plan_number",
		toPO: productionPlanToPO, toDomain: (*ProductionPlanPO).toDomain,
	}}
}

func (r *ProductionPlanRepository) CountActiveByProductType(ctx context.Context, productTypeID string) (int64, error) {
	return r.count(ctx, "product_type_id = ? AND status NOT IN ?", productTypeID,
		[]string{string(factory.PlanCompleted), string(factory.PlanCancelled)})
}

type ProductionBatchRepository struct {
	recordRepository[*factory.ProductionBatch, ProductionBatchPO]
}

func NewProductionBatchRepository(db *gorm.DB) *ProductionBatchRepository {
	return &ProductionBatchRepository{recordRepository[*factory.ProductionBatch, ProductionBatchPO]{
		db: db, entity: "production_batch", keyCol: "batch_number",
		toPO: productionBatchToPO, toDomain: (*ProductionBatchPO).toDomain,
	}}
}

func (r *ProductionBatchRepository) CountByProductType(ctx context.Context, productTypeID string) (int64, error) {
	return r.count(ctx, "product_type_id = ?", productTypeID)
}

func (r *ProductionBatchRepository) CountByPlan(ctx context.Context, planID string) (int64, error) {
	return r.count(ctx, "plan_id = ?", planID)
}

type MaterialBatchRepository struct {
	recordRepository[*factory.MaterialBatch, MaterialBatchPO]
}

func NewMaterialBatchRepository(db *gorm.DB) *MaterialBatchRepository {
	return &MaterialBatchRepository{recordRepository[*factory.MaterialBatch, MaterialBatchPO]{
		db: db, entity: "material_batch", keyCol: "batch_number",
		toPO: materialBatchToPO, toDomain: (*MaterialBatchPO).toDomain,
	}}
}

// NewRepositories bundles the production repositories for the engine.
func NewRepositories(db *gorm.DB) factory.Repositories {
	return factory.Repositories{
		ProductTypes:      NewProductTypeRepository(db),
		ProductionPlans:   NewProductionPlanRepository(db),
		ProductionBatches: NewProductionBatchRepository(db),
		MaterialBatches:   NewMaterialBatchRepository(db),
	}
}

// Compile-time interface implementation checks
var (
	_ factory.ProductTypeRepository     = (*ProductTypeRepository)(nil)
	_ factory.ProductionPlanRepository  = (*ProductionPlanRepository)(nil)
	_ factory.ProductionBatchRepository = (*ProductionBatchRepository)(nil)
	_ factory.MaterialBatchRepository   = (*MaterialBatchRepository)(nil)
)
