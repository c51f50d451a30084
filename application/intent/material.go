package intent

import (
	"context"
	"fmt"
	"strings"

	"factoryops/domain/factory"
	"factoryops/domain/intent"
)

const materialIntentPrefix = "MATERIAL_BATCH_"

var stockActions = map[factory.StockOperation]intent.Action{
	factory.StockUse:     intent.ActionUsed,
	factory.StockReserve: intent.ActionReserved,
	factory.StockRelease: intent.ActionReleased,
	factory.StockConsume: intent.ActionConsumed,
	factory.StockAdjust:  intent.ActionAdjusted,
}

// MaterialHandler Stock movements on material batches. The intent code
// names the movement (MATERIAL_BATCH_USE, ..._RESERVE, ..._RELEASE,
// ..._CONSUME, ..._ADJUST); "quantity" is the amount moved, signed for
// adjustments.
type MaterialHandler struct {
	mutating
}

// NewMaterialHandler Create MATERIAL handler and register its stock
// operations with the engine.
func NewMaterialHandler(engine *Engine, extractor intent.SlotExtractor) *MaterialHandler {
	for _, op := range factory.StockOperations() {
		engine.Register(Operation{
			Name:        string(op),
			Action:      stockActions[op],
			EntityTypes: []intent.EntityType{intent.EntityMaterialBatch},
			Derive:      deriveStock(op),
		})
	}
	return &MaterialHandler{mutating{engine: engine, slots: slotFiller{extractor: extractor}}}
}

func (h *MaterialHandler) Category() intent.Category { return intent.CategoryMaterial }

func (h *MaterialHandler) Intents() []intent.IntentInfo {
	required := []string{intent.KeyEntityIdentifier, intent.KeyQuantity}
	names := map[factory.StockOperation]string{
		factory.StockUse:     "Use material",
		factory.StockReserve: "Reserve material",
		factory.StockRelease: "Release reservation",
		factory.StockConsume: "Consume reserved material",
		factory.StockAdjust:  "Adjust stock",
	}
	out := make([]intent.IntentInfo, 0, len(names))
	for _, op := range factory.StockOperations() {
		out = append(out, intent.IntentInfo{
			Code:     materialIntentPrefix + string(op),
			Name:     names[op],
			Required: required,
			Mutating: true,
		})
	}
	return out
}

func (h *MaterialHandler) Handle(ctx context.Context, req intent.Request) (intent.Outcome, error) {
	ch, err := h.change(ctx, req)
	if err != nil {
		return intent.Outcome{}, err
	}
	return h.run(ctx, req, ch, false)
}

func (h *MaterialHandler) Preview(ctx context.Context, req intent.Request) (intent.Outcome, error) {
	ch, err := h.change(ctx, req)
	if err != nil {
		return intent.Outcome{}, err
	}
	return h.run(ctx, req, ch, true)
}

func (h *MaterialHandler) change(ctx context.Context, req intent.Request) (Change, error) {
	if _, missing := referenceFrom(req, intent.EntityMaterialBatch); len(missing) > 0 || !present(req, intent.KeyQuantity) {
		req = h.slots.fill(ctx, req, intent.KeyEntityIdentifier, intent.KeyQuantity)
	}

	op, err := stockOperation(req)
	if err != nil {
		return Change{}, err
	}
	ref, missing := referenceFrom(req, intent.EntityMaterialBatch)
	qty, ok := req.Value(intent.KeyQuantity)
	if !ok || !present(req, intent.KeyQuantity) {
		missing = append(missing, intent.KeyQuantity)
	}
	if len(missing) > 0 {
		return Change{}, intent.NewMissingFieldsError(missing...)
	}

	updates := intent.FieldUpdates{{Field: intent.KeyQuantity, Value: qty}}
	if reason := req.Text(intent.KeyReason); reason != "" {
		updates = updates.With(intent.KeyReason, reason)
	}
	return Change{Target: ref, Operation: string(op), Updates: updates}, nil
}

// stockOperation reads the movement from the intent code, falling back to
// the "operation" slot for a generic material intent.
func stockOperation(req intent.Request) (factory.StockOperation, error) {
	code := strings.ToUpper(req.IntentCode)
	if strings.HasPrefix(code, materialIntentPrefix) {
		if op, err := factory.ParseStockOperation(strings.TrimPrefix(code, materialIntentPrefix)); err == nil {
			return op, nil
		}
	}
	if s := req.Text(intent.KeyOperation); s != "" {
		op, err := factory.ParseStockOperation(s)
		if err != nil {
			return "", intent.NewUnsupportedOperationError(s)
		}
		return op, nil
	}
	if code == "" || code == materialIntentPrefix+"OPERATION" {
		return "", intent.NewMissingFieldsError(intent.KeyOperation)
	}
	return "", intent.NewUnsupportedOperationError(req.IntentCode)
}

// deriveStock turns {quantity, reason?} into the absolute field updates of
// the movement, computed from the live batch.
func deriveStock(op factory.StockOperation) DeriveFunc {
	return func(e intent.Entity, raw intent.FieldUpdates) (intent.FieldUpdates, error) {
		m, ok := e.(*factory.MaterialBatch)
		if !ok {
			return nil, intent.NewUnsupportedOperationError(fmt.Sprintf("%s on %s", op, e.EntityType()))
		}
		v, _ := raw.Get(intent.KeyQuantity)
		amount, err := intent.CoerceDecimal(v)
		if err != nil {
			return nil, intent.NewInvalidFieldValueError(intent.KeyQuantity, err)
		}
		next, err := m.Project(op, amount)
		if err != nil {
			return nil, intent.NewInvalidFieldValueError(intent.KeyQuantity, err)
		}

		var out intent.FieldUpdates
		if !next.Quantity.Equal(m.Quantity) {
			out = out.With("quantity", next.Quantity)
		}
		if !next.ReservedQuantity.Equal(m.ReservedQuantity) {
			out = out.With("reservedQuantity", next.ReservedQuantity)
		}
		if !next.UsedQuantity.Equal(m.UsedQuantity) {
			out = out.With("usedQuantity", next.UsedQuantity)
		}
		if next.Status != m.Status {
			out = out.With("status", string(next.Status))
		}
		if reason, ok := raw.Get(intent.KeyReason); ok {
			out = out.With("notes", reason)
		}
		return out, nil
	}
}

var (
	_ intent.Handler         = (*MaterialHandler)(nil)
	_ intent.IntentDescriber = (*MaterialHandler)(nil)
)
