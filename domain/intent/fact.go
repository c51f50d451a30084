package intent

import (
	"strings"
)

// FactInput Raw material for an OperationFact
type FactInput struct {
	EntityType    EntityType
	EntityID      string
	EntityName    string
	Operation     string
	Category      Category
	CurrentStatus string
	TargetStatus  string
	Related       map[string]int64
	Updates       FieldUpdates
	Proposed      map[string]any
	Current       map[string]any
}

// OperationFact Rule-evaluator facing description of one proposed mutation.
// Built fresh per validation call; every accessor returns a copy.
type OperationFact struct {
	entityType    EntityType
	entityID      string
	entityName    string
	operation     string
	category      Category
	currentStatus string
	targetStatus  string
	related       map[string]int64
	updates       FieldUpdates
	proposed      map[string]any
	current       map[string]any
}

func NewOperationFact(in FactInput) OperationFact {
	related := make(map[string]int64, len(in.Related))
	for k, v := range in.Related {
		related[k] = v
	}
	return OperationFact{
		entityType:    in.EntityType,
		entityID:      in.EntityID,
		entityName:    in.EntityName,
		operation:     in.Operation,
		category:      in.Category,
		currentStatus: in.CurrentStatus,
		targetStatus:  in.TargetStatus,
		related:       related,
		updates:       append(FieldUpdates(nil), in.Updates...),
		proposed:      copyValues(in.Proposed),
		current:       copyValues(in.Current),
	}
}

func (f OperationFact) EntityType() EntityType { return f.entityType }
func (f OperationFact) EntityID() string       { return f.entityID }
func (f OperationFact) EntityName() string     { return f.entityName }
func (f OperationFact) Operation() string      { return f.operation }
func (f OperationFact) Category() Category     { return f.category }
func (f OperationFact) CurrentStatus() string  { return f.currentStatus }
func (f OperationFact) TargetStatus() string   { return f.targetStatus }

// IsStatusTransition reports whether the mutation moves the status field.
func (f OperationFact) IsStatusTransition() bool {
	return f.targetStatus != "" && f.targetStatus != f.currentStatus
}

func (f OperationFact) Related() map[string]int64 {
	out := make(map[string]int64, len(f.related))
	for k, v := range f.related {
		out[k] = v
	}
	return out
}

func (f OperationFact) Updates() FieldUpdates {
	return append(FieldUpdates(nil), f.updates...)
}

func (f OperationFact) Proposed() map[string]any { return copyValues(f.proposed) }
func (f OperationFact) Current() map[string]any  { return copyValues(f.current) }

// Lookup resolves a dotted path against the fact:
//
//	entityType, entityId, entityName, operation, category,
//	currentStatus, targetStatus, related.<name>,
//	updates.<field> (raw), proposed.<field> (coerced), current.<field>
func (f OperationFact) Lookup(path string) (any, bool) {
	head, rest, _ := strings.Cut(path, ".")
	switch head {
	case "entityType":
		return string(f.entityType), true
	case "entityId":
		return f.entityID, true
	case "entityName":
		return f.entityName, true
	case "operation":
		return f.operation, true
	case "category":
		return string(f.category), true
	case "currentStatus":
		return f.currentStatus, f.currentStatus != ""
	case "targetStatus":
		return f.targetStatus, f.targetStatus != ""
	case "related":
		v, ok := f.related[rest]
		return v, ok
	case "updates":
		return f.updates.Get(rest)
	case "proposed":
		v, ok := f.proposed[rest]
		return v, ok
	case "current":
		v, ok := f.current[rest]
		return v, ok
	}
	return nil, false
}

// Map renders the fact as plain data for logging and remote evaluators.
func (f OperationFact) Map() map[string]any {
	related := make(map[string]any, len(f.related))
	for k, v := range f.related {
		related[k] = v
	}
	return map[string]any{
		"entityType":    string(f.entityType),
		"entityId":      f.entityID,
		"entityName":    f.entityName,
		"operation":     f.operation,
		"category":      string(f.category),
		"currentStatus": f.currentStatus,
		"targetStatus":  f.targetStatus,
		"related":       related,
		"updates":       f.updates.Map(),
		"proposed":      copyValues(f.proposed),
		"current":       copyValues(f.current),
	}
}
