package intent

import (
	"sort"
	"time"
)

// Action Audit tag describing what a mutation did
type Action string

const (
	ActionCreated  Action = "CREATED"
	ActionUpdated  Action = "UPDATED"
	ActionUsed     Action = "USED"
	ActionReserved Action = "RESERVED"
	ActionReleased Action = "RELEASED"
	ActionConsumed Action = "CONSUMED"
	ActionAdjusted Action = "ADJUSTED"
	ActionDeleted  Action = "DELETED"
)

// Changes Before/after values of every applied field. Both maps always hold
// the same keys.
type Changes struct {
	OldValues map[string]any `json:"oldValues"`
	NewValues map[string]any `json:"newValues"`
}

// MutationRecord Immutable result of applying a field update set to one entity
type MutationRecord struct {
	ID         string     `json:"id,omitempty"`
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	EntityName string     `json:"entityName"`
	Action     Action     `json:"action"`
	Changes    Changes    `json:"changes"`

	// Skipped lists update fields the entity's schema does not know.
	Skipped []string `json:"skippedFields,omitempty"`

	Actor      string    `json:"actor,omitempty"`
	IntentCode string    `json:"intentCode,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// NewMutationRecord copies the change maps so the record cannot be altered
// through the caller's references.
func NewMutationRecord(e Entity, action Action, oldValues, newValues map[string]any, skipped []string, actor string, at time.Time) MutationRecord {
	return MutationRecord{
		EntityType: e.EntityType(),
		EntityID:   e.EntityID(),
		EntityName: e.DisplayName(),
		Action:     action,
		Changes: Changes{
			OldValues: copyValues(oldValues),
			NewValues: copyValues(newValues),
		},
		Skipped:    append([]string(nil), skipped...),
		Actor:      actor,
		RecordedAt: at,
	}
}

// Fields returns the applied field names, sorted.
func (r MutationRecord) Fields() []string {
	out := make([]string, 0, len(r.Changes.NewValues))
	for k := range r.Changes.NewValues {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UndoUpdates is the field update set that restores the pre-mutation values.
func (r MutationRecord) UndoUpdates() FieldUpdates {
	return UpdatesFromMap(r.Changes.OldValues)
}

// Reference points back at the mutated entity.
func (r MutationRecord) Reference() Reference {
	return Reference{Type: string(r.EntityType), ID: r.EntityID}
}

func copyValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
