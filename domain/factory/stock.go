package factory

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StockOperation Quantity movement on a material batch
type StockOperation string

const (
	// StockUse takes unreserved stock.
	StockUse StockOperation = "USE"
	// StockReserve sets stock aside for production.
	StockReserve StockOperation = "RESERVE"
	// StockRelease returns reserved stock to the free pool.
	StockRelease StockOperation = "RELEASE"
	// StockConsume takes reserved stock.
	StockConsume StockOperation = "CONSUME"
	// StockAdjust corrects the stock on hand by a signed amount.
	StockAdjust StockOperation = "ADJUST"
)

// StockOperations lists every operation in a stable order.
func StockOperations() []StockOperation {
	return []StockOperation{StockUse, StockReserve, StockRelease, StockConsume, StockAdjust}
}

// ParseStockOperation accepts any casing.
func ParseStockOperation(s string) (StockOperation, error) {
	op := StockOperation(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range StockOperations() {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown stock operation %q", s)
}

// StockLevels Quantities and status of a material batch
type StockLevels struct {
	Quantity         decimal.Decimal
	ReservedQuantity decimal.Decimal
	UsedQuantity     decimal.Decimal
	Status           MaterialStatus
}

// Levels returns the batch's current stock levels.
func (m *MaterialBatch) Levels() StockLevels {
	return StockLevels{
		Quantity:         m.Quantity,
		ReservedQuantity: m.ReservedQuantity,
		UsedQuantity:     m.UsedQuantity,
		Status:           m.Status,
	}
}

// Project computes the stock levels after op without changing the batch.
// Only the amount's sign is checked here; whether the result is acceptable
// (enough stock, not expired) is for the business rules to decide, so the
// projection may go negative.
func (m *MaterialBatch) Project(op StockOperation, amount decimal.Decimal) (StockLevels, error) {
	if op == StockAdjust {
		if amount.IsZero() {
			return StockLevels{}, fmt.Errorf("adjustment amount must not be zero")
		}
	} else if !amount.IsPositive() {
		return StockLevels{}, fmt.Errorf("quantity must be positive, got %s", amount)
	}

	next := m.Levels()
	switch op {
	case StockUse:
		next.Quantity = next.Quantity.Sub(amount)
		next.UsedQuantity = next.UsedQuantity.Add(amount)
	case StockReserve:
		next.ReservedQuantity = next.ReservedQuantity.Add(amount)
	case StockRelease:
		next.ReservedQuantity = next.ReservedQuantity.Sub(amount)
	case StockConsume:
		next.ReservedQuantity = next.ReservedQuantity.Sub(amount)
		next.Quantity = next.Quantity.Sub(amount)
		next.UsedQuantity = next.UsedQuantity.Add(amount)
	case StockAdjust:
		next.Quantity = next.Quantity.Add(amount)
	default:
		return StockLevels{}, fmt.Errorf("unknown stock operation %q", op)
	}
	next.Status = next.status(m.Status)
	return next, nil
}

// status derives the batch status from the levels. EXPIRED is sticky.
func (l StockLevels) status(current MaterialStatus) MaterialStatus {
	switch {
	case current == MaterialExpired:
		return MaterialExpired
	case !l.Quantity.IsPositive():
		return MaterialDepleted
	case l.ReservedQuantity.GreaterThanOrEqual(l.Quantity):
		return MaterialReserved
	default:
		return MaterialAvailable
	}
}
