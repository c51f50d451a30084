package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"factoryops/domain/intent"
	"factoryops/pkg/logger"

	"go.uber.org/zap"
)

// fieldChange One coerced, not yet applied field update
type fieldChange struct {
	accessor *intent.Accessor
	value    any
}

// Plan Field updates checked against an entity schema. Building a plan has
// no side effects; Apply performs it.
type Plan struct {
	schema  *intent.Schema
	changes []fieldChange
	skipped []string
}

// Skipped lists update fields the schema does not declare.
func (p *Plan) Skipped() []string { return append([]string(nil), p.skipped...) }

// Empty reports whether no field would change.
func (p *Plan) Empty() bool { return len(p.changes) == 0 }

// Proposed renders the values the plan would write, keyed by schema field
// name. Status values are upper-cased as the setters store them.
func (p *Plan) Proposed() map[string]any {
	out := make(map[string]any, len(p.changes))
	for _, c := range p.changes {
		out[c.accessor.Name()] = p.display(c)
	}
	return out
}

// Updates returns the planned changes as an update set using canonical field
// names.
func (p *Plan) Updates() intent.FieldUpdates {
	out := make(intent.FieldUpdates, 0, len(p.changes))
	for _, c := range p.changes {
		out = append(out, intent.FieldUpdate{Field: c.accessor.Name(), Value: p.display(c)})
	}
	return out
}

// TargetStatus is the status the plan moves the entity to, or "".
func (p *Plan) TargetStatus() string {
	for _, c := range p.changes {
		if c.accessor.IsStatus() {
			if s, ok := p.display(c).(string); ok {
				return s
			}
		}
	}
	return ""
}

func (p *Plan) display(c fieldChange) any {
	v := c.accessor.Display(c.value)
	if s, ok := v.(string); ok && c.accessor.IsStatus() {
		return strings.ToUpper(s)
	}
	return v
}

// Mutator Generic field mutator: applies update sets to entities by field
// name through their schema's typed accessors
type Mutator struct {
	now func() time.Time
}

func NewMutator(now func() time.Time) *Mutator {
	if now == nil {
		now = time.Now
	}
	return &Mutator{now: now}
}

// Plan coerces every update against the schema. Unknown fields are skipped
// and logged; a value that cannot be coerced fails the whole plan.
func (m *Mutator) Plan(schema *intent.Schema, updates intent.FieldUpdates) (*Plan, error) {
	p := &Plan{schema: schema}
	seen := make(map[string]int, len(updates))

	for _, u := range updates {
		acc, ok := schema.Field(u.Field)
		if !ok {
			logger.Warn("Skipping unknown field",
				zap.String("entity_type", string(schema.Type())),
				zap.String("field", u.Field))
			p.skipped = append(p.skipped, u.Field)
			continue
		}
		v, err := acc.Coerce(u.Value)
		if err != nil {
			return nil, intent.NewInvalidFieldValueError(acc.Name(), err)
		}
		fc := fieldChange{accessor: acc, value: v}
		// a repeated field keeps its position and takes the last value
		if i, dup := seen[acc.Name()]; dup {
			p.changes[i] = fc
			continue
		}
		seen[acc.Name()] = len(p.changes)
		p.changes = append(p.changes, fc)
	}
	return p, nil
}

// Apply writes the plan into e, saves it once and returns the record. Old
// and new values are read through the accessors so both sides use the same
// display form.
func (m *Mutator) Apply(ctx context.Context, repo intent.EntityRepository, e intent.Entity, p *Plan, action intent.Action, actor intent.Actor) (intent.MutationRecord, error) {
	if p.Empty() {
		return intent.MutationRecord{}, intent.NewInvalidFieldValueError("updates",
			fmt.Errorf("no known fields in %s", strings.Join(p.skipped, ", ")))
	}

	oldValues, err := read(e, p.changes)
	if err != nil {
		return intent.MutationRecord{}, err
	}

	// audit stamp first so an explicit updatedBy in the update set wins
	now := m.now().UTC()
	if t, ok := e.(interface{ Touch(string, time.Time) }); ok {
		t.Touch(actor.ID, now)
	}
	for _, c := range p.changes {
		if err := c.accessor.Set(e, c.value); err != nil {
			return intent.MutationRecord{}, intent.NewInternalError("write "+c.accessor.Name(), err)
		}
	}
	newValues, err := read(e, p.changes)
	if err != nil {
		return intent.MutationRecord{}, err
	}

	if err := repo.Save(ctx, e); err != nil {
		logger.Error("Failed to save entity",
			zap.String("entity_type", string(e.EntityType())),
			zap.String("entity_id", e.EntityID()),
			zap.Error(err))
		return intent.MutationRecord{}, intent.NewInternalError("save", err)
	}

	return intent.NewMutationRecord(e, action, oldValues, newValues, p.skipped, actor.ID, now), nil
}

func read(e intent.Entity, changes []fieldChange) (map[string]any, error) {
	out := make(map[string]any, len(changes))
	for _, c := range changes {
		v, err := c.accessor.Get(e)
		if err != nil {
			return nil, intent.NewInternalError("read "+c.accessor.Name(), err)
		}
		out[c.accessor.Name()] = v
	}
	return out, nil
}
