package intent

import (
	"context"
	"strings"

	"factoryops/domain/intent"
	"factoryops/pkg/logger"

	"go.uber.org/zap"
)

// slotFiller Fills missing context slots from the free-text input using an
// optional classifier. It never fails: without a classifier, without input,
// or on a classifier error the request is returned unchanged.
type slotFiller struct {
	extractor intent.SlotExtractor
}

// fill asks the classifier when any of keys is missing. Values already in the
// context always win over classifier output.
func (f slotFiller) fill(ctx context.Context, req intent.Request, keys ...string) intent.Request {
	if f.extractor == nil || strings.TrimSpace(req.UserInput) == "" || !missingAny(req, keys) {
		return req
	}
	slots, err := f.extractor.ExtractSlots(ctx, req)
	if err != nil {
		logger.Warn("Slot extraction failed, continuing with request context",
			zap.String("intent_code", req.IntentCode),
			zap.Error(err))
		return req
	}
	return req.WithContext(slots.Context())
}

func missingAny(req intent.Request, keys []string) bool {
	for _, k := range keys {
		if !present(req, k) {
			return true
		}
	}
	return false
}

func present(req intent.Request, key string) bool {
	v, ok := req.Value(key)
	if !ok {
		return false
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) != ""
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	case intent.FieldUpdates:
		return len(x) > 0
	}
	return true
}

// referenceFrom reads the entity reference slots, reporting what is missing.
// fixedType is used when the intent implies the entity type.
func referenceFrom(req intent.Request, fixedType intent.EntityType) (intent.Reference, []string) {
	ref := req.Reference()
	if fixedType != "" && ref.Type == "" {
		ref.Type = string(fixedType)
	}
	var missing []string
	if ref.Type == "" {
		missing = append(missing, intent.KeyEntityType)
	}
	if !ref.HasKey() {
		missing = append(missing, intent.KeyEntityIdentifier)
	}
	return ref, missing
}
