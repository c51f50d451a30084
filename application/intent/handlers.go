package intent

import (
	"context"
	"strings"

	"factoryops/domain/intent"
)

// ============================================================================
// Shared mutating handler flow
// ============================================================================

// mutating Commit/preview flow shared by handlers whose intents change
// entities
type mutating struct {
	engine *Engine
	slots  slotFiller
}

// run commits ch, or parks it behind a token when previewing or when the
// intent code requires confirmation.
func (m mutating) run(ctx context.Context, req intent.Request, ch Change, preview bool) (intent.Outcome, error) {
	if preview || m.engine.RequiresConfirmation(req.IntentCode) {
		pr, err := m.engine.Preview(ctx, req, ch)
		if err != nil {
			return intent.Outcome{}, err
		}
		status := intent.StatusPreview
		if !preview {
			status = intent.StatusNeedConfirm
		}
		return PreviewOutcome(req, status, pr, m.engine.now()), nil
	}

	res, err := m.engine.Execute(ctx, req, ch)
	if err != nil {
		return intent.Outcome{}, err
	}
	return CompletedOutcome(req, res), nil
}

// ============================================================================
// DATA_OP
// ============================================================================

// Intent codes of the DATA_OP category.
const (
	IntentEntityUpdate = "ENTITY_UPDATE"
	IntentUndo         = "UNDO"
)

// DataOpHandler Generic field updates on any registered entity type
type DataOpHandler struct {
	mutating
}

// NewDataOpHandler Create DATA_OP handler. extractor may be nil.
func NewDataOpHandler(engine *Engine, extractor intent.SlotExtractor) *DataOpHandler {
	return &DataOpHandler{mutating{engine: engine, slots: slotFiller{extractor: extractor}}}
}

func (h *DataOpHandler) Category() intent.Category { return intent.CategoryDataOp }

func (h *DataOpHandler) Intents() []intent.IntentInfo {
	required := []string{intent.KeyEntityType, intent.KeyEntityIdentifier, intent.KeyUpdates}
	return []intent.IntentInfo{
		{Code: IntentEntityUpdate, Name: "Update entity", Description: "Change named fields of one entity", Required: required, Mutating: true},
		{Code: IntentUndo, Name: "Undo change", Description: "Restore the previous values of a committed change", Required: required, Mutating: true},
	}
}

func (h *DataOpHandler) Handle(ctx context.Context, req intent.Request) (intent.Outcome, error) {
	ch, err := h.change(ctx, req)
	if err != nil {
		return intent.Outcome{}, err
	}
	return h.run(ctx, req, ch, false)
}

func (h *DataOpHandler) Preview(ctx context.Context, req intent.Request) (intent.Outcome, error) {
	ch, err := h.change(ctx, req)
	if err != nil {
		return intent.Outcome{}, err
	}
	return h.run(ctx, req, ch, true)
}

// change reads the reference and update set. Missing slots are reported
// together, before anything is looked up.
func (h *DataOpHandler) change(ctx context.Context, req intent.Request) (Change, error) {
	switch strings.ToUpper(req.IntentCode) {
	case IntentEntityUpdate, IntentUndo, "":
	default:
		return Change{}, intent.NewUnsupportedOperationError(req.IntentCode)
	}
	if op := req.Text(intent.KeyOperation); op != "" && !strings.EqualFold(op, OperationUpdate) {
		return Change{}, intent.NewUnsupportedOperationError(op)
	}

	if _, missing := referenceFrom(req, ""); len(missing) > 0 || !present(req, intent.KeyUpdates) {
		req = h.slots.fill(ctx, req, intent.KeyEntityType, intent.KeyUpdates)
	}

	ref, missing := referenceFrom(req, "")
	raw, _ := req.Value(intent.KeyUpdates)
	updates, err := intent.ParseUpdates(raw)
	if err != nil {
		return Change{}, intent.NewInvalidFieldValueError(intent.KeyUpdates, err)
	}
	if updates.IsEmpty() {
		missing = append(missing, intent.KeyUpdates)
	}
	if len(missing) > 0 {
		return Change{}, intent.NewMissingFieldsError(missing...)
	}
	return Change{Target: ref, Operation: OperationUpdate, Updates: updates}, nil
}

var (
	_ intent.Handler         = (*DataOpHandler)(nil)
	_ intent.IntentDescriber = (*DataOpHandler)(nil)
)
