package gormdb

import (
	"time"

	"factoryops/domain/factory"
	"factoryops/domain/intent"

	"github.com/shopspring/decimal"
)

// Persistence objects. They only map columns; conversion to and from the
// domain records happens in the to/from functions below.

type ProductTypePO struct {
	ID            string          `gorm:"primaryKey;size:64"`
	Code          string          `gorm:"size:64;uniqueIndex;not null"`
	Name          string          `gorm:"size:255;not null"`
	Category      string          `gorm:"size:64"`
	Unit          string          `gorm:"size:16"`
	StandardPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ShelfLifeDays int64           `gorm:"not null;default:0"`
	Status        string          `gorm:"size:20;index;not null"`
	Notes         string          `gorm:"size:1000"`
	UpdatedBy     string          `gorm:"size:64"`
	CreatedAt     time.Time       `gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime"`
}

func (ProductTypePO) TableName() string { return "product_types" }

type ProductionPlanPO struct {
	ID              string          `gorm:"primaryKey;size:64"`
	PlanNumber      string          `gorm:"size:64;uniqueIndex;not null"`
	ProductTypeID   string          `gorm:"size:64;index;not null"`
	PlannedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ActualQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Priority        int64           `gorm:"not null;default:0"`
	StartDate       *time.Time
	EndDate         *time.Time
	Status          string    `gorm:"size:20;index;not null"`
	Notes           string    `gorm:"size:1000"`
	UpdatedBy       string    `gorm:"size:64"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (ProductionPlanPO) TableName() string { return "production_plans" }

type ProductionBatchPO struct {
	ID            string          `gorm:"primaryKey;size:64"`
	BatchNumber   string          `gorm:"size:64;uniqueIndex;not null"`
	PlanID        string          `gorm:"size:64;index"`
	ProductTypeID string          `gorm:"size:64;index;not null"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	YieldRate     float64         `gorm:"not null;default:0"`
	QualityPassed bool            `gorm:"not null;default:false"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Status        string    `gorm:"size:20;index;not null"`
	Notes         string    `gorm:"size:1000"`
	UpdatedBy     string    `gorm:"size:64"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (ProductionBatchPO) TableName() string { return "production_batches" }

type MaterialBatchPO struct {
	ID               string          `gorm:"primaryKey;size:64"`
	BatchNumber      string          `gorm:"size:64;uniqueIndex;not null"`
	MaterialName     string          `gorm:"size:255;not null"`
	SupplierName     string          `gorm:"size:255"`
	Unit             string          `gorm:"size:16"`
	ReceiptQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReservedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UsedQuantity     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReceiptDate      *time.Time
	ExpireDate       *time.Time
	Status           string    `gorm:"size:20;index;not null"`
	Notes            string    `gorm:"size:1000"`
	UpdatedBy        string    `gorm:"size:64"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (MaterialBatchPO) TableName() string { return "material_batches" }

// PreviewTokenPO stores the token value as primary key so the confirm path
// is a single-row compare-and-swap.
type PreviewTokenPO struct {
	Token      string              `gorm:"primaryKey;size:64"`
	Owner      string              `gorm:"size:64;index"`
	EntityType string              `gorm:"size:32;not null"`
	EntityID   string              `gorm:"size:64;index"`
	Target     intent.Reference    `gorm:"serializer:json"`
	Category   string              `gorm:"size:32"`
	IntentCode string              `gorm:"size:64"`
	Operation  string              `gorm:"size:64"`
	Action     string              `gorm:"size:20"`
	Payload    map[string]any      `gorm:"serializer:json"`
	Snapshot   map[string]any      `gorm:"serializer:json"`
	Proposed   intent.FieldUpdates `gorm:"serializer:json"`
	State      string              `gorm:"size:16;index;not null"`
	CreatedAt  time.Time           `gorm:"not null"`
	ExpiresAt  time.Time           `gorm:"index;not null"`
	ConsumedAt *time.Time
}

func (PreviewTokenPO) TableName() string { return "preview_tokens" }

type MutationRecordPO struct {
	ID         string         `gorm:"primaryKey;size:64"`
	EntityType string         `gorm:"size:32;index:idx_mutation_entity;not null"`
	EntityID   string         `gorm:"size:64;index:idx_mutation_entity;not null"`
	EntityName string         `gorm:"size:255"`
	Action     string         `gorm:"size:20;not null"`
	OldValues  map[string]any `gorm:"serializer:json"`
	NewValues  map[string]any `gorm:"serializer:json"`
	Skipped    []string       `gorm:"serializer:json"`
	Actor      string         `gorm:"size:64"`
	IntentCode string         `gorm:"size:64"`
	RecordedAt time.Time      `gorm:"index;not null"`
}

func (MutationRecordPO) TableName() string { return "mutation_records" }

// AllModels lists every table for AutoMigrate.
func AllModels() []any {
	return []any{
		&ProductTypePO{},
		&ProductionPlanPO{},
		&ProductionBatchPO{},
		&MaterialBatchPO{},
		&PreviewTokenPO{},
		&MutationRecordPO{},
	}
}

// ============================================================================
// Conversions
// ============================================================================

func productTypeToPO(p *factory.ProductType) *ProductTypePO {
	return &ProductTypePO{
		ID: p.ID, Code: p.Code, Name: p.Name, Category: p.Category, Unit: p.Unit,
		StandardPrice: p.StandardPrice, ShelfLifeDays: p.ShelfLifeDays, Status: string(p.Status),
		Notes: p.Notes, UpdatedBy: p.UpdatedBy, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func (po *ProductTypePO) toDomain() *factory.ProductType {
	return &factory.ProductType{
		ID: po.ID, Code: po.Code, Name: po.Name, Category: po.Category, Unit: po.Unit,
		StandardPrice: po.StandardPrice, ShelfLifeDays: po.ShelfLifeDays,
		Status: factory.ProductTypeStatus(po.Status),
		Audit:  factory.Audit{Notes: po.Notes, UpdatedBy: po.UpdatedBy, CreatedAt: po.CreatedAt, UpdatedAt: po.UpdatedAt},
	}
}

func productionPlanToPO(p *factory.ProductionPlan) *ProductionPlanPO {
	return &ProductionPlanPO{
		ID: p.ID, PlanNumber: p.PlanNumber, ProductTypeID: p.ProductTypeID,
		PlannedQuantity: p.PlannedQuantity, ActualQuantity: p.ActualQuantity, Priority: p.Priority,
		StartDate: p.StartDate, EndDate: p.EndDate, Status: string(p.Status),
		Notes: p.Notes, UpdatedBy: p.UpdatedBy, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func (po *ProductionPlanPO) toDomain() *factory.ProductionPlan {
	return &factory.ProductionPlan{
		ID: po.ID, PlanNumber: po.PlanNumber, ProductTypeID: po.ProductTypeID,
		PlannedQuantity: po.PlannedQuantity, ActualQuantity: po.ActualQuantity, Priority: po.Priority,
		StartDate: po.StartDate, EndDate: po.EndDate, Status: factory.PlanStatus(po.Status),
		Audit: factory.Audit{Notes: po.Notes, UpdatedBy: po.UpdatedBy, CreatedAt: po.CreatedAt, UpdatedAt: po.UpdatedAt},
	}
}

func productionBatchToPO(b *factory.ProductionBatch) *ProductionBatchPO {
	return &ProductionBatchPO{
		ID: b.ID, BatchNumber: b.BatchNumber, PlanID: b.PlanID, ProductTypeID: b.ProductTypeID,
		Quantity: b.Quantity, YieldRate: b.YieldRate, QualityPassed: b.QualityPassed,
		StartedAt: b.StartedAt, CompletedAt: b.CompletedAt, Status: string(b.Status),
		Notes: b.Notes, UpdatedBy: b.UpdatedBy, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func (po *ProductionBatchPO) toDomain() *factory.ProductionBatch {
	return &factory.ProductionBatch{
		ID: po.ID, BatchNumber: po.BatchNumber, PlanID: po.PlanID, ProductTypeID: po.ProductTypeID,
		Quantity: po.Quantity, YieldRate: po.YieldRate, QualityPassed: po.QualityPassed,
		StartedAt: po.StartedAt, CompletedAt: po.CompletedAt, Status: factory.BatchStatus(po.Status),
		Audit: factory.Audit{Notes: po.Notes, UpdatedBy: po.UpdatedBy, CreatedAt: po.CreatedAt, UpdatedAt: po.UpdatedAt},
	}
}

func materialBatchToPO(m *factory.MaterialBatch) *MaterialBatchPO {
	return &MaterialBatchPO{
		ID: m.ID, BatchNumber: m.BatchNumber, MaterialName: m.MaterialName, SupplierName: m.SupplierName,
		Unit: m.Unit, ReceiptQuantity: m.ReceiptQuantity, Quantity: m.Quantity,
		ReservedQuantity: m.ReservedQuantity, UsedQuantity: m.UsedQuantity, UnitPrice: m.UnitPrice,
		ReceiptDate: m.ReceiptDate, ExpireDate: m.ExpireDate, Status: string(m.Status),
		Notes: m.Notes, UpdatedBy: m.UpdatedBy, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func (po *MaterialBatchPO) toDomain() *factory.MaterialBatch {
	return &factory.MaterialBatch{
		ID: po.ID, BatchNumber: po.BatchNumber, MaterialName: po.MaterialName, SupplierName: po.SupplierName,
		Unit: po.Unit, ReceiptQuantity: po.ReceiptQuantity, Quantity: po.Quantity,
		ReservedQuantity: po.ReservedQuantity, UsedQuantity: po.UsedQuantity, UnitPrice: po.UnitPrice,
		ReceiptDate: po.ReceiptDate, ExpireDate: po.ExpireDate, Status: factory.MaterialStatus(po.Status),
		Audit: factory.Audit{Notes: po.Notes, UpdatedBy: po.UpdatedBy, CreatedAt: po.CreatedAt, UpdatedAt: po.UpdatedAt},
	}
}

func tokenToPO(t *intent.PreviewToken) *PreviewTokenPO {
	return &PreviewTokenPO{
		Token: t.Value, Owner: t.Owner, EntityType: string(t.EntityType), EntityID: t.EntityID,
		Target: t.Target, Category: string(t.Category), IntentCode: t.IntentCode,
		Operation: t.Operation, Action: string(t.Action),
		Payload: t.Payload, Snapshot: t.Snapshot, Proposed: t.Proposed,
		State: string(t.State), CreatedAt: t.CreatedAt.UTC(), ExpiresAt: t.ExpiresAt.UTC(), ConsumedAt: t.ConsumedAt,
	}
}

func (po *PreviewTokenPO) toDomain() *intent.PreviewToken {
	return &intent.PreviewToken{
		Value: po.Token, Owner: po.Owner, EntityType: intent.EntityType(po.EntityType), EntityID: po.EntityID,
		Target: po.Target, Category: intent.Category(po.Category), IntentCode: po.IntentCode,
		Operation: po.Operation, Action: intent.Action(po.Action),
		Payload: po.Payload, Snapshot: po.Snapshot, Proposed: po.Proposed,
		State: intent.TokenState(po.State), CreatedAt: po.CreatedAt, ExpiresAt: po.ExpiresAt, ConsumedAt: po.ConsumedAt,
	}
}

func mutationToPO(r *intent.MutationRecord) *MutationRecordPO {
	return &MutationRecordPO{
		ID: r.ID, EntityType: string(r.EntityType), EntityID: r.EntityID, EntityName: r.EntityName,
		Action: string(r.Action), OldValues: r.Changes.OldValues, NewValues: r.Changes.NewValues,
		Skipped: r.Skipped, Actor: r.Actor, IntentCode: r.IntentCode, RecordedAt: r.RecordedAt.UTC(),
	}
}

func (po *MutationRecordPO) toDomain() intent.MutationRecord {
	return intent.MutationRecord{
		ID: po.ID, EntityType: intent.EntityType(po.EntityType), EntityID: po.EntityID, EntityName: po.EntityName,
		Action:     intent.Action(po.Action),
		Changes:    intent.Changes{OldValues: po.OldValues, NewValues: po.NewValues},
		Skipped:    po.Skipped,
		Actor:      po.Actor,
		IntentCode: po.IntentCode,
		RecordedAt: po.RecordedAt,
	}
}
