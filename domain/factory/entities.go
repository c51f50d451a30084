/*
Package factory Production domain - the business records intents operate on

Product types are produced by production plans, which are executed as
production batches consuming material batches. Every record is addressable
both by its identifier and by a human-facing business key (code, plan number,
batch number), and describes its fields through an intent.Schema so the
engine can read and write them by name.
*/
package factory

import (
	"time"

	"factoryops/domain/intent"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Audit Fields every production record carries
type Audit struct {
	Notes     string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Audit) audit() *Audit { return a }

// Touch stamps the record as modified by actor at now.
func (a *Audit) Touch(actor string, now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if actor != "" {
		a.UpdatedBy = actor
	}
}

// NewID generates a record identifier.
func NewID() string {
	return uuid.NewString()
}

// ============================================================================
// Product type
// ============================================================================

// ProductTypeStatus Product type lifecycle status
type ProductTypeStatus string

const (
	ProductTypeActive   ProductTypeStatus = "ACTIVE"
	ProductTypeInactive ProductTypeStatus = "INACTIVE"
)

// ProductType A finished good the factory produces, keyed by Code
type ProductType struct {
	ID            string
	Code          string
	Name          string
	Category      string
	Unit          string
	StandardPrice decimal.Decimal
	ShelfLifeDays int64
	Status        ProductTypeStatus
	Audit
}

func (p *ProductType) EntityType() intent.EntityType { return intent.EntityProductType }
func (p *ProductType) EntityID() string              { return p.ID }
func (p *ProductType) DisplayName() string           { return p.Name + " (" + p.Code + ")" }

// ============================================================================
// Production plan
// ============================================================================

// PlanStatus Production plan lifecycle status
type PlanStatus string

const (
	PlanPending    PlanStatus = "PENDING"
	PlanInProgress PlanStatus = "IN_PROGRESS"
	PlanCompleted  PlanStatus = "COMPLETED"
	PlanCancelled  PlanStatus = "CANCELLED"
)

// ProductionPlan Scheduled production of one product type, keyed by PlanNumber
type ProductionPlan struct {
	ID              string
	PlanNumber      string
	ProductTypeID   string
	PlannedQuantity decimal.Decimal
	ActualQuantity  decimal.Decimal
	Priority        int64
	StartDate       *time.Time
	EndDate         *time.Time
	Status          PlanStatus
	Audit
}

func (p *ProductionPlan) EntityType() intent.EntityType { return intent.EntityProductionPlan }
func (p *ProductionPlan) EntityID() string              { return p.ID }
func (p *ProductionPlan) DisplayName() string           { return p.PlanNumber }

// ============================================================================
// Production batch
// ============================================================================

// BatchStatus Production batch lifecycle status
type BatchStatus string

const (
	BatchPlanning     BatchStatus = "PLANNING"
	BatchInProgress   BatchStatus = "IN_PROGRESS"
	BatchQualityCheck BatchStatus = "QUALITY_CHECK"
	BatchCompleted    BatchStatus = "COMPLETED"
	BatchCancelled    BatchStatus = "CANCELLED"
)

// ProductionBatch One run of a plan on the line, keyed by BatchNumber
type ProductionBatch struct {
	ID            string
	BatchNumber   string
	PlanID        string
	ProductTypeID string
	Quantity      decimal.Decimal
	YieldRate     float64
	QualityPassed bool
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Status        BatchStatus
	Audit
}

func (b *ProductionBatch) EntityType() intent.EntityType { return intent.EntityProductionBatch }
func (b *ProductionBatch) EntityID() string              { return b.ID }
func (b *ProductionBatch) DisplayName() string           { return b.BatchNumber }

// ============================================================================
// Material batch
// ============================================================================

// MaterialStatus Material batch stock status
type MaterialStatus string

const (
	MaterialAvailable MaterialStatus = "AVAILABLE"
	MaterialReserved  MaterialStatus = "RESERVED"
	MaterialDepleted  MaterialStatus = "DEPLETED"
	MaterialExpired   MaterialStatus = "EXPIRED"
)

// MaterialBatch One receipt of raw material, keyed by BatchNumber.
// Quantity is the stock on hand not yet used; ReservedQuantity is the part of
// it set aside for production.
type MaterialBatch struct {
	ID               string
	BatchNumber      string
	MaterialName     string
	SupplierName     string
	Unit             string
	ReceiptQuantity  decimal.Decimal
	Quantity         decimal.Decimal
	ReservedQuantity decimal.Decimal
	UsedQuantity     decimal.Decimal
	UnitPrice        decimal.Decimal
	ReceiptDate      *time.Time
	ExpireDate       *time.Time
	Status           MaterialStatus
	Audit
}

func (m *MaterialBatch) EntityType() intent.EntityType { return intent.EntityMaterialBatch }
func (m *MaterialBatch) EntityID() string              { return m.ID }
func (m *MaterialBatch) DisplayName() string           { return m.MaterialName + " " + m.BatchNumber }

// AvailableQuantity is the stock that is neither used nor reserved.
func (m *MaterialBatch) AvailableQuantity() decimal.Decimal {
	return m.Quantity.Sub(m.ReservedQuantity)
}

// ExpiredAt reports whether the batch is past its expiry date at now.
func (m *MaterialBatch) ExpiredAt(now time.Time) bool {
	return m.ExpireDate != nil && now.After(*m.ExpireDate)
}
