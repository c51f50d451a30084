package intent

import (
	"context"
)

// Handler Owner of every intent in one category. Handle is the commit path,
// Preview the dry run. Errors returned here are converted into outcomes by
// the dispatcher; handlers may also return FAILED outcomes themselves.
type Handler interface {
	Category() Category
	Handle(ctx context.Context, req Request) (Outcome, error)
	Preview(ctx context.Context, req Request) (Outcome, error)
}

// IntentInfo Describes one intent code for discovery endpoints
type IntentInfo struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Required    []string `json:"requiredFields,omitempty"`
	Mutating    bool     `json:"mutating"`
}

// IntentDescriber is implemented by handlers that can list their intents.
type IntentDescriber interface {
	Intents() []IntentInfo
}

// Slots Entity slots an external classifier may fill from free text
type Slots struct {
	EntityType       string         `json:"entityType,omitempty"`
	EntityID         string         `json:"entityId,omitempty"`
	EntityIdentifier string         `json:"entityIdentifier,omitempty"`
	Operation        string         `json:"operation,omitempty"`
	Quantity         any            `json:"quantity,omitempty"`
	Updates          map[string]any `json:"updates,omitempty"`
}

// Context renders the non-empty slots as intent context entries.
func (s Slots) Context() map[string]any {
	out := make(map[string]any)
	put := func(k string, v any) {
		if str, ok := v.(string); ok && str == "" {
			return
		}
		if v != nil {
			out[k] = v
		}
	}
	put(KeyEntityType, s.EntityType)
	put(KeyEntityID, s.EntityID)
	put(KeyEntityIdentifier, s.EntityIdentifier)
	put(KeyOperation, s.Operation)
	put(KeyQuantity, s.Quantity)
	if len(s.Updates) > 0 {
		out[KeyUpdates] = s.Updates
	}
	return out
}

// SlotExtractor Intent classifier collaborator. Implementations may be slow
// or unavailable; callers treat errors as "no help".
type SlotExtractor interface {
	ExtractSlots(ctx context.Context, req Request) (Slots, error)
}
