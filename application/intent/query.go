package intent

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"factoryops/domain/intent"
)

// Intent codes of the QUERY category.
const (
	IntentEntityQuery   = "ENTITY_QUERY"
	IntentEntityHistory = "ENTITY_HISTORY"
)

const defaultHistoryLimit = 20

// QueryHandler Read-only lookups. Reads never pass through the validation
// gateway, and preview is the same as handle.
type QueryHandler struct {
	engine *Engine
	slots  slotFiller
}

// NewQueryHandler Create QUERY handler. extractor may be nil.
func NewQueryHandler(engine *Engine, extractor intent.SlotExtractor) *QueryHandler {
	return &QueryHandler{engine: engine, slots: slotFiller{extractor: extractor}}
}

func (h *QueryHandler) Category() intent.Category { return intent.CategoryQuery }

func (h *QueryHandler) Intents() []intent.IntentInfo {
	required := []string{intent.KeyEntityType, intent.KeyEntityIdentifier}
	return []intent.IntentInfo{
		{Code: IntentEntityQuery, Name: "Look up entity", Description: "Show every field of one entity", Required: required},
		{Code: IntentEntityHistory, Name: "Change history", Description: "List committed changes of one entity, newest first", Required: required},
	}
}

func (h *QueryHandler) Preview(ctx context.Context, req intent.Request) (intent.Outcome, error) {
	return h.Handle(ctx, req)
}

func (h *QueryHandler) Handle(ctx context.Context, req intent.Request) (intent.Outcome, error) {
	code := strings.ToUpper(req.IntentCode)
	switch code {
	case IntentEntityQuery, IntentEntityHistory, "":
	default:
		return intent.Outcome{}, intent.NewUnsupportedOperationError(req.IntentCode)
	}

	if _, missing := referenceFrom(req, ""); len(missing) > 0 {
		req = h.slots.fill(ctx, req, intent.KeyEntityType, intent.KeyEntityIdentifier)
	}
	ref, missing := referenceFrom(req, "")
	if len(missing) > 0 {
		return intent.Outcome{}, intent.NewMissingFieldsError(missing...)
	}

	if code == IntentEntityHistory {
		return h.history(ctx, req, ref)
	}

	ent, repo, err := h.engine.Resolver().Resolve(ctx, ref)
	if err != nil {
		return intent.Outcome{}, err
	}
	fields := repo.Schema().Snapshot(ent)
	o := intent.NewOutcome(req, intent.StatusCompleted, "found "+ent.DisplayName())
	o.ResultData = map[string]any{
		"entityType": ent.EntityType(),
		"entityId":   ent.EntityID(),
		"entityName": ent.DisplayName(),
		"fields":     fields,
	}
	o.FormattedText = formatFields(ent.DisplayName(), fields)
	return o, nil
}

func (h *QueryHandler) history(ctx context.Context, req intent.Request, ref intent.Reference) (intent.Outcome, error) {
	limit := defaultHistoryLimit
	if s := req.Text("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := h.engine.History(ctx, ref, limit)
	if err != nil {
		return intent.Outcome{}, err
	}

	o := intent.NewOutcome(req, intent.StatusCompleted, fmt.Sprintf("%d recorded changes", len(recs)))
	o.ResultData = map[string]any{"records": recs}
	var b strings.Builder
	for _, r := range recs {
		fmt.Fprintf(&b, "%s %s by %s: %s\n", r.RecordedAt.Format("2006-01-02 15:04"), r.Action, r.Actor, strings.Join(r.Fields(), ", "))
	}
	o.FormattedText = strings.TrimRight(b.String(), "\n")
	return o, nil
}

func formatFields(title string, fields map[string]any) string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(title)
	for _, k := range names {
		fmt.Fprintf(&b, "\n  %s: %v", k, display(fields[k]))
	}
	return b.String()
}

var (
	_ intent.Handler         = (*QueryHandler)(nil)
	_ intent.IntentDescriber = (*QueryHandler)(nil)
)
