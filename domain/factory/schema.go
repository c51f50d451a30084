package factory

import (
	"strings"
	"sync"
	"time"

	"factoryops/domain/intent"

	"github.com/shopspring/decimal"
)

type audited interface {
	intent.Entity
	audit() *Audit
}

// auditFields are shared by every production record's schema.
func auditFields[T audited]() []*intent.Accessor {
	return []*intent.Accessor{
		intent.StringField("notes",
			func(e T) string { return e.audit().Notes },
			func(e T, v string) { e.audit().Notes = v }),
		intent.StringField("updatedBy",
			func(e T) string { return e.audit().UpdatedBy },
			func(e T, v string) { e.audit().UpdatedBy = v }),
	}
}

var (
	schemasOnce sync.Once

	productTypeSchema     *intent.Schema
	productionPlanSchema  *intent.Schema
	productionBatchSchema *intent.Schema
	materialBatchSchema   *intent.Schema
)

func buildSchemas() {
	productTypeSchema = intent.NewSchema(intent.EntityProductType, []*intent.Accessor{
		intent.StringField("code",
			func(p *ProductType) string { return p.Code },
			func(p *ProductType, v string) { p.Code = v }),
		intent.StringField("name",
			func(p *ProductType) string { return p.Name },
			func(p *ProductType, v string) { p.Name = v }),
		intent.StringField("category",
			func(p *ProductType) string { return p.Category },
			func(p *ProductType, v string) { p.Category = v }),
		intent.StringField("unit",
			func(p *ProductType) string { return p.Unit },
			func(p *ProductType, v string) { p.Unit = v }),
		intent.DecimalField("standardPrice",
			func(p *ProductType) decimal.Decimal { return p.StandardPrice },
			func(p *ProductType, v decimal.Decimal) { p.StandardPrice = v }),
		intent.IntField("shelfLifeDays",
			func(p *ProductType) int64 { return p.ShelfLifeDays },
			func(p *ProductType, v int64) { p.ShelfLifeDays = v }),
		intent.StringField("status",
			func(p *ProductType) string { return string(p.Status) },
			func(p *ProductType, v string) { p.Status = ProductTypeStatus(strings.ToUpper(v)) }).Status(),
	}, auditFields[*ProductType]())

	productionPlanSchema = intent.NewSchema(intent.EntityProductionPlan, []*intent.Accessor{
		intent.StringField("planNumber",
			func(p *ProductionPlan) string { return p.PlanNumber },
			func(p *ProductionPlan, v string) { p.PlanNumber = v }),
		intent.StringField("productTypeId",
			func(p *ProductionPlan) string { return p.ProductTypeID },
			func(p *ProductionPlan, v string) { p.ProductTypeID = v }),
		intent.DecimalField("plannedQuantity",
			func(p *ProductionPlan) decimal.Decimal { return p.PlannedQuantity },
			func(p *ProductionPlan, v decimal.Decimal) { p.PlannedQuantity = v }),
		intent.DecimalField("actualQuantity",
			func(p *ProductionPlan) decimal.Decimal { return p.ActualQuantity },
			func(p *ProductionPlan, v decimal.Decimal) { p.ActualQuantity = v }),
		intent.IntField("priority",
			func(p *ProductionPlan) int64 { return p.Priority },
			func(p *ProductionPlan, v int64) { p.Priority = v }),
		intent.DateField("startDate",
			func(p *ProductionPlan) *time.Time { return p.StartDate },
			func(p *ProductionPlan, v *time.Time) { p.StartDate = v }),
		intent.DateField("endDate",
			func(p *ProductionPlan) *time.Time { return p.EndDate },
			func(p *ProductionPlan, v *time.Time) { p.EndDate = v }),
		intent.StringField("status",
			func(p *ProductionPlan) string { return string(p.Status) },
			func(p *ProductionPlan, v string) { p.Status = PlanStatus(strings.ToUpper(v)) }).Status(),
	}, auditFields[*ProductionPlan]())

	productionBatchSchema = intent.NewSchema(intent.EntityProductionBatch, []*intent.Accessor{
		intent.StringField("batchNumber",
			func(b *ProductionBatch) string { return b.BatchNumber },
			func(b *ProductionBatch, v string) { b.BatchNumber = v }),
		intent.StringField("planId",
			func(b *ProductionBatch) string { return b.PlanID },
			func(b *ProductionBatch, v string) { b.PlanID = v }),
		intent.StringField("productTypeId",
			func(b *ProductionBatch) string { return b.ProductTypeID },
			func(b *ProductionBatch, v string) { b.ProductTypeID = v }),
		intent.DecimalField("quantity",
			func(b *ProductionBatch) decimal.Decimal { return b.Quantity },
			func(b *ProductionBatch, v decimal.Decimal) { b.Quantity = v }),
		intent.FloatField("yieldRate",
			func(b *ProductionBatch) float64 { return b.YieldRate },
			func(b *ProductionBatch, v float64) { b.YieldRate = v }),
		intent.BoolField("qualityPassed",
			func(b *ProductionBatch) bool { return b.QualityPassed },
			func(b *ProductionBatch, v bool) { b.QualityPassed = v }),
		intent.DateTimeField("startedAt",
			func(b *ProductionBatch) *time.Time { return b.StartedAt },
			func(b *ProductionBatch, v *time.Time) { b.StartedAt = v }),
		intent.DateTimeField("completedAt",
			func(b *ProductionBatch) *time.Time { return b.CompletedAt },
			func(b *ProductionBatch, v *time.Time) { b.CompletedAt = v }),
		intent.StringField("status",
			func(b *ProductionBatch) string { return string(b.Status) },
			func(b *ProductionBatch, v string) { b.Status = BatchStatus(strings.ToUpper(v)) }).Status(),
	}, auditFields[*ProductionBatch]())

	materialBatchSchema = intent.NewSchema(intent.EntityMaterialBatch, []*intent.Accessor{
		intent.StringField("batchNumber",
			func(m *MaterialBatch) string { return m.BatchNumber },
			func(m *MaterialBatch, v string) { m.BatchNumber = v }),
		intent.StringField("materialName",
			func(m *MaterialBatch) string { return m.MaterialName },
			func(m *MaterialBatch, v string) { m.MaterialName = v }),
		intent.StringField("supplierName",
			func(m *MaterialBatch) string { return m.SupplierName },
			func(m *MaterialBatch, v string) { m.SupplierName = v }),
		intent.StringField("unit",
			func(m *MaterialBatch) string { return m.Unit },
			func(m *MaterialBatch, v string) { m.Unit = v }),
		intent.DecimalField("receiptQuantity",
			func(m *MaterialBatch) decimal.Decimal { return m.ReceiptQuantity },
			func(m *MaterialBatch, v decimal.Decimal) { m.ReceiptQuantity = v }),
		intent.DecimalField("quantity",
			func(m *MaterialBatch) decimal.Decimal { return m.Quantity },
			func(m *MaterialBatch, v decimal.Decimal) { m.Quantity = v }),
		intent.DecimalField("reservedQuantity",
			func(m *MaterialBatch) decimal.Decimal { return m.ReservedQuantity },
			func(m *MaterialBatch, v decimal.Decimal) { m.ReservedQuantity = v }),
		intent.DecimalField("usedQuantity",
			func(m *MaterialBatch) decimal.Decimal { return m.UsedQuantity },
			func(m *MaterialBatch, v decimal.Decimal) { m.UsedQuantity = v }),
		intent.DecimalField("unitPrice",
			func(m *MaterialBatch) decimal.Decimal { return m.UnitPrice },
			func(m *MaterialBatch, v decimal.Decimal) { m.UnitPrice = v }),
		intent.DateField("receiptDate",
			func(m *MaterialBatch) *time.Time { return m.ReceiptDate },
			func(m *MaterialBatch, v *time.Time) { m.ReceiptDate = v }),
		intent.DateField("expireDate",
			func(m *MaterialBatch) *time.Time { return m.ExpireDate },
			func(m *MaterialBatch, v *time.Time) { m.ExpireDate = v }),
		intent.StringField("status",
			func(m *MaterialBatch) string { return string(m.Status) },
			func(m *MaterialBatch, v string) { m.Status = MaterialStatus(strings.ToUpper(v)) }).Status(),
	}, auditFields[*MaterialBatch]())
}

func ProductTypeSchema() *intent.Schema {
	schemasOnce.Do(buildSchemas)
	return productTypeSchema
}

func ProductionPlanSchema() *intent.Schema {
	schemasOnce.Do(buildSchemas)
	return productionPlanSchema
}

func ProductionBatchSchema() *intent.Schema {
	schemasOnce.Do(buildSchemas)
	return productionBatchSchema
}

func MaterialBatchSchema() *intent.Schema {
	schemasOnce.Do(buildSchemas)
	return materialBatchSchema
}
