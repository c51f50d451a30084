/*
Package intent defines the vocabulary of the intent execution engine: entity
references, field update sets, mutation records, operation facts, preview
tokens and the standard outcome every handler produces.

The package has no knowledge of concrete business entities. Entity packages
describe themselves through a Schema (typed field accessors) and plug their
repositories into an EntityStore.
*/
package intent

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// EntityType is the canonical tag of an addressable business entity.
type EntityType string

const (
	EntityProductType     EntityType = "PRODUCT_TYPE"
	EntityProductionPlan  EntityType = "PRODUCTION_PLAN"
	EntityProductionBatch EntityType = "PRODUCTION_BATCH"
	EntityMaterialBatch   EntityType = "MATERIAL_BATCH"
)

// Entity is implemented by every business record the engine can address.
type Entity interface {
	EntityType() EntityType
	EntityID() string
	DisplayName() string
}

// Reference is a loosely typed pointer at one entity, as it arrives from
// intent context. Type is the raw tag (any alias); at least one of ID or
// BusinessKey must be set.
type Reference struct {
	Type        string `json:"entityType"`
	ID          string `json:"entityId,omitempty"`
	BusinessKey string `json:"entityIdentifier,omitempty"`
}

// HasKey reports whether the reference carries usable key material.
func (r Reference) HasKey() bool {
	return strings.TrimSpace(r.ID) != "" || strings.TrimSpace(r.BusinessKey) != ""
}

// Key returns whichever key is present, preferring the identifier.
func (r Reference) Key() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return strings.TrimSpace(r.BusinessKey)
}

var (
	aliasMu sync.RWMutex
	aliases = map[string]EntityType{
		"PRODUCT_TYPE": EntityProductType,
		"PRODUCT":      EntityProductType,
		"PRODUCTTYPE":  EntityProductType,
		"产品类型":         EntityProductType,
		"产品":           EntityProductType,

		"PRODUCTION_PLAN": EntityProductionPlan,
		"PLAN":            EntityProductionPlan,
		"生产计划":            EntityProductionPlan,

		"PRODUCTION_BATCH": EntityProductionBatch,
		"PROCESSING_BATCH": EntityProductionBatch,
		"BATCH":            EntityProductionBatch,
		"生产批次":             EntityProductionBatch,
		"加工批次":             EntityProductionBatch,

		"MATERIAL_BATCH":     EntityMaterialBatch,
		"MATERIAL":           EntityMaterialBatch,
		"RAW_MATERIAL_BATCH": EntityMaterialBatch,
		"原料批次":               EntityMaterialBatch,
		"原材料批次":              EntityMaterialBatch,
	}
)

// RegisterAlias maps an extra tag onto a canonical entity type.
func RegisterAlias(alias string, t EntityType) {
	aliasMu.Lock()
	defer aliasMu.Unlock()
	aliases[normalizeTag(alias)] = t
}

// ParseEntityType maps any known alias onto its canonical type.
func ParseEntityType(tag string) (EntityType, error) {
	key := normalizeTag(tag)
	if key == "" {
		return "", NewUnknownEntityTypeError(tag)
	}

	aliasMu.RLock()
	t, ok := aliases[key]
	aliasMu.RUnlock()
	if !ok {
		return "", NewUnknownEntityTypeError(tag)
	}
	return t, nil
}

// normalizeTag folds casings and separators: "materialBatch", "material-batch"
// and "MATERIAL_BATCH" all become "MATERIAL_BATCH". NFKC first, so full-width
// input from CJK keyboards matches too.
func normalizeTag(tag string) string {
	tag = strings.TrimSpace(norm.NFKC.String(tag))
	var b strings.Builder
	b.Grow(len(tag) + 4)

	var prev rune
	for i, r := range tag {
		switch {
		case r == '-' || r == ' ' || r == '.':
			r = '_'
		case i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			b.WriteRune('_')
		}
		b.WriteRune(unicode.ToUpper(r))
		prev = r
	}
	return b.String()
}
