package intent

import (
	"fmt"
	"strings"
)

// Category Intent family; each category is owned by exactly one handler
type Category string

const (
	CategoryDataOp   Category = "DATA_OP"
	CategoryMaterial Category = "MATERIAL"
	CategoryQuery    Category = "QUERY"
)

// ParseCategory normalizes casing and separators.
func ParseCategory(s string) Category {
	return Category(normalizeTag(s))
}

// Actor Identity on whose behalf an intent runs
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
}

// Request Intent execution request
type Request struct {
	IntentCode string         `json:"intentCode"`
	Category   Category       `json:"category"`
	UserInput  string         `json:"userInput,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Actor      Actor          `json:"actor"`
}

// Context keys understood by the built-in handlers.
const (
	KeyEntityType       = "entityType"
	KeyEntityID         = "entityId"
	KeyEntityIdentifier = "entityIdentifier"
	KeyUpdates          = "updates"
	KeyOperation        = "operation"
	KeyQuantity         = "quantity"
	KeyReason           = "reason"
)

// Text returns the context value as text, or "" when absent.
func (r Request) Text(key string) string {
	v, ok := r.Context[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Value returns the raw context value.
func (r Request) Value(key string) (any, bool) {
	v, ok := r.Context[key]
	return v, ok && v != nil
}

// Reference extracts the entity reference from context.
func (r Request) Reference() Reference {
	return Reference{
		Type:        r.Text(KeyEntityType),
		ID:          r.Text(KeyEntityID),
		BusinessKey: r.Text(KeyEntityIdentifier),
	}
}

// WithContext returns a copy whose context has the given entries merged in.
// Existing keys are kept.
func (r Request) WithContext(extra map[string]any) Request {
	merged := make(map[string]any, len(r.Context)+len(extra))
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range r.Context {
		if v != nil {
			merged[k] = v
		}
	}
	r.Context = merged
	return r
}
