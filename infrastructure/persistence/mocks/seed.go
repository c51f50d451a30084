package mocks

import (
	"context"
	"time"

	"factoryops/domain/factory"

	"github.com/shopspring/decimal"
)

// DemoData Sample production records, relative to now so expiry dates stay
// meaningful whenever the data is loaded
type DemoData struct {
	ProductTypes      []*factory.ProductType
	ProductionPlans   []*factory.ProductionPlan
	ProductionBatches []*factory.ProductionBatch
	MaterialBatches   []*factory.MaterialBatch
}

func NewDemoData(now time.Time) DemoData {
	now = now.UTC()
	day := func(offset int) *time.Time {
		y, m, d := now.AddDate(0, 0, offset).Date()
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	audit := factory.Audit{UpdatedBy: "seed", CreatedAt: now, UpdatedAt: now}
	dec := decimal.RequireFromString

	return DemoData{
		ProductTypes: []*factory.ProductType{
			{ID: "pt-001", Code: "PT-F001-001", Name: "Pork Dumplings", Category: "FROZEN", Unit: "bag",
				StandardPrice: dec("18.50"), ShelfLifeDays: 180, Status: factory.ProductTypeActive, Audit: audit},
			{ID: "pt-002", Code: "PT-F002-001", Name: "Vegetable Spring Rolls", Category: "FROZEN", Unit: "box",
				StandardPrice: dec("12.00"), ShelfLifeDays: 120, Status: factory.ProductTypeActive, Audit: audit},
		},
		ProductionPlans: []*factory.ProductionPlan{
			{ID: "pp-001", PlanNumber: "PP-2024-001", ProductTypeID: "pt-001", PlannedQuantity: dec("1000"),
				ActualQuantity: dec("400"), Priority: 1, StartDate: day(-3), EndDate: day(4),
				Status: factory.PlanInProgress, Audit: audit},
			{ID: "pp-002", PlanNumber: "PP-2024-002", ProductTypeID: "pt-002", PlannedQuantity: dec("500"),
				Priority: 2, StartDate: day(2), EndDate: day(9), Status: factory.PlanPending, Audit: audit},
		},
		ProductionBatches: []*factory.ProductionBatch{
			{ID: "pb-001", BatchNumber: "PB-2024-001", PlanID: "pp-001", ProductTypeID: "pt-001",
				Quantity: dec("400"), YieldRate: 0.96, QualityPassed: true, StartedAt: day(-3), CompletedAt: day(-2),
				Status: factory.BatchCompleted, Audit: audit},
			{ID: "pb-002", BatchNumber: "PB-2024-002", PlanID: "pp-001", ProductTypeID: "pt-001",
				Quantity: dec("300"), StartedAt: day(0), Status: factory.BatchInProgress, Audit: audit},
		},
		MaterialBatches: []*factory.MaterialBatch{
			{ID: "mb-001", BatchNumber: "MB-2024-001", MaterialName: "Pork shoulder", SupplierName: "Green Valley Farms",
				Unit: "kg", ReceiptQuantity: dec("500"), Quantity: dec("500"), UnitPrice: dec("28.50"),
				ReceiptDate: day(-5), ExpireDate: day(25), Status: factory.MaterialAvailable, Audit: audit},
			{ID: "mb-002", BatchNumber: "MB-2024-002", MaterialName: "Wheat flour", SupplierName: "Northern Mills",
				Unit: "kg", ReceiptQuantity: dec("1000"), Quantity: dec("1000"), ReservedQuantity: dec("200"),
				UnitPrice: dec("4.20"), ReceiptDate: day(-10), ExpireDate: day(170), Status: factory.MaterialAvailable, Audit: audit},
			{ID: "mb-003", BatchNumber: "MB-2023-099", MaterialName: "Napa cabbage", SupplierName: "Green Valley Farms",
				Unit: "kg", ReceiptQuantity: dec("80"), Quantity: dec("80"), UnitPrice: dec("3.10"),
				ReceiptDate: day(-20), ExpireDate: day(-2), Status: factory.MaterialAvailable, Audit: audit},
		},
	}
}

// Load saves every record through the given repositories.
func (d DemoData) Load(ctx context.Context, r factory.Repositories) error {
	for _, p := range d.ProductTypes {
		if err := r.ProductTypes.Save(ctx, p); err != nil {
			return err
		}
	}
	for _, p := range d.ProductionPlans {
		if err := r.ProductionPlans.Save(ctx, p); err != nil {
			return err
		}
	}
	for _, b := range d.ProductionBatches {
		if err := r.ProductionBatches.Save(ctx, b); err != nil {
			return err
		}
	}
	for _, m := range d.MaterialBatches {
		if err := r.MaterialBatches.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// NewSeededStore returns a store holding the demo data.
func NewSeededStore(now time.Time) *Store {
	s := NewStore()
	if err := NewDemoData(now).Load(context.Background(), s.Repositories()); err != nil {
		panic(err)
	}
	return s
}
