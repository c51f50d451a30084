package factory

import (
	"context"

	"factoryops/domain/intent"
)

// ProductTypeRepository Product type persistence, keyed by Code
type ProductTypeRepository interface {
	intent.TypedRepository[*ProductType]
}

// ProductionPlanRepository Production plan persistence, keyed by PlanNumber
type ProductionPlanRepository interface {
	intent.TypedRepository[*ProductionPlan]

	// CountActiveByProductType counts plans that are neither completed nor cancelled.
	CountActiveByProductType(ctx context.Context, productTypeID string) (int64, error)
}

// ProductionBatchRepository Production batch persistence, keyed by BatchNumber
type ProductionBatchRepository interface {
	intent.TypedRepository[*ProductionBatch]

	CountByProductType(ctx context.Context, productTypeID string) (int64, error)
	CountByPlan(ctx context.Context, planID string) (int64, error)
}

// MaterialBatchRepository Material batch persistence, keyed by BatchNumber
type MaterialBatchRepository interface {
	intent.TypedRepository[*MaterialBatch]
}

// Repositories Bundle of the production repositories of one backend
type Repositories struct {
	ProductTypes      ProductTypeRepository
	ProductionPlans   ProductionPlanRepository
	ProductionBatches ProductionBatchRepository
	MaterialBatches   MaterialBatchRepository
}

// Related-record counter names, as they appear in operation facts.
const (
	RelatedProductionBatches = "productionBatches"
	RelatedActivePlans       = "activePlans"
)

// NewEntityStore registers the production repositories with the engine,
// wiring the related-record counts each entity type reports to the rules.
func NewEntityStore(r Repositories) *intent.EntityStore {
	batches := r.ProductionBatches
	plans := r.ProductionPlans

	return intent.NewEntityStore(
		intent.Bind(ProductTypeSchema(), intent.TypedRepository[*ProductType](r.ProductTypes),
			intent.Count(RelatedProductionBatches, func(ctx context.Context, p *ProductType) (int64, error) {
				return batches.CountByProductType(ctx, p.ID)
			}),
			intent.Count(RelatedActivePlans, func(ctx context.Context, p *ProductType) (int64, error) {
				return plans.CountActiveByProductType(ctx, p.ID)
			}),
		),
		intent.Bind(ProductionPlanSchema(), intent.TypedRepository[*ProductionPlan](r.ProductionPlans),
			intent.Count(RelatedProductionBatches, func(ctx context.Context, p *ProductionPlan) (int64, error) {
				return batches.CountByPlan(ctx, p.ID)
			}),
		),
		intent.Bind(ProductionBatchSchema(), intent.TypedRepository[*ProductionBatch](r.ProductionBatches)),
		intent.Bind(MaterialBatchSchema(), intent.TypedRepository[*MaterialBatch](r.MaterialBatches)),
	)
}
