package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldKind Declared type of an addressable entity field
type FieldKind string

const (
	KindString   FieldKind = "string"
	KindInteger  FieldKind = "integer"
	KindDecimal  FieldKind = "decimal"
	KindFloat    FieldKind = "float"
	KindBoolean  FieldKind = "boolean"
	KindDate     FieldKind = "date"
	KindDateTime FieldKind = "datetime"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = time.RFC3339
)

// Accessor Typed getter/setter pair for one field of one entity type.
// Values read through an accessor are in display form: decimals stay
// decimal.Decimal, dates and datetimes become strings, unset dates are nil.
type Accessor struct {
	name   string
	kind   FieldKind
	status bool

	get    func(Entity) (any, error)
	set    func(Entity, any) error
	coerce func(any) (any, error)
	show   func(any) any
}

// Name returns the canonical field name (camelCase).
func (a *Accessor) Name() string { return a.name }

// Kind returns the declared field type.
func (a *Accessor) Kind() FieldKind { return a.kind }

// IsStatus reports whether the field carries the entity's lifecycle status.
func (a *Accessor) IsStatus() bool { return a.status }

// Status marks the field as the entity's status field.
func (a *Accessor) Status() *Accessor {
	a.status = true
	return a
}

// Get reads the field's current value in display form.
func (a *Accessor) Get(e Entity) (any, error) {
	return a.get(e)
}

// Coerce converts a weakly typed raw value into the field's Go type.
// The result is only meaningful to Set and Display of the same accessor.
func (a *Accessor) Coerce(raw any) (any, error) {
	return a.coerce(raw)
}

// Set stores a value previously produced by Coerce.
func (a *Accessor) Set(e Entity, coerced any) error {
	return a.set(e, coerced)
}

// Display renders a coerced value the same way Get renders stored values.
func (a *Accessor) Display(coerced any) any {
	return a.show(coerced)
}

func typed[T Entity, V any](name string, kind FieldKind, get func(T) V, set func(T, V), coerce func(any) (V, error), show func(V) any) *Accessor {
	return &Accessor{
		name: name,
		kind: kind,
		get: func(e Entity) (any, error) {
			t, ok := e.(T)
			if !ok {
				return nil, fmt.Errorf("field %s does not belong to %T", name, e)
			}
			return show(get(t)), nil
		},
		set: func(e Entity, v any) error {
			t, ok := e.(T)
			if !ok {
				return fmt.Errorf("field %s does not belong to %T", name, e)
			}
			cv, ok := v.(V)
			if !ok {
				return fmt.Errorf("field %s expects %s, got %T", name, kind, v)
			}
			set(t, cv)
			return nil
		},
		coerce: func(raw any) (any, error) {
			return coerce(raw)
		},
		show: func(v any) any {
			cv, ok := v.(V)
			if !ok {
				return v
			}
			return show(cv)
		},
	}
}

func identity[V any](v V) any { return v }

func StringField[T Entity](name string, get func(T) string, set func(T, string)) *Accessor {
	return typed(name, KindString, get, set, CoerceString, identity[string])
}

func IntField[T Entity](name string, get func(T) int64, set func(T, int64)) *Accessor {
	return typed(name, KindInteger, get, set, CoerceInt, identity[int64])
}

func DecimalField[T Entity](name string, get func(T) decimal.Decimal, set func(T, decimal.Decimal)) *Accessor {
	return typed(name, KindDecimal, get, set, CoerceDecimal, identity[decimal.Decimal])
}

func FloatField[T Entity](name string, get func(T) float64, set func(T, float64)) *Accessor {
	return typed(name, KindFloat, get, set, CoerceFloat, identity[float64])
}

func BoolField[T Entity](name string, get func(T) bool, set func(T, bool)) *Accessor {
	return typed(name, KindBoolean, get, set, CoerceBool, identity[bool])
}

// DateField declares an optional calendar date. nil clears it.
func DateField[T Entity](name string, get func(T) *time.Time, set func(T, *time.Time)) *Accessor {
	return typed(name, KindDate, get, set, optional(CoerceDate), formatTime(dateLayout))
}

// DateTimeField declares an optional instant. nil clears it.
func DateTimeField[T Entity](name string, get func(T) *time.Time, set func(T, *time.Time)) *Accessor {
	return typed(name, KindDateTime, get, set, optional(CoerceDateTime), formatTime(dateTimeLayout))
}

func optional(parse func(any) (time.Time, error)) func(any) (*time.Time, error) {
	return func(raw any) (*time.Time, error) {
		if isBlank(raw) {
			return nil, nil
		}
		t, err := parse(raw)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
}

func formatTime(layout string) func(*time.Time) any {
	return func(t *time.Time) any {
		if t == nil || t.IsZero() {
			return nil
		}
		return t.Format(layout)
	}
}

// ============================================================================
// Schema
// ============================================================================

// Schema Field accessor registry of one entity type, built once and reused
type Schema struct {
	entityType EntityType
	fields     []*Accessor
	index      map[string]*Accessor
	status     *Accessor
}

// NewSchema assembles a schema from one or more field groups. Groups shared by
// several entity types (audit fields) are passed alongside the type's own.
// Duplicate names are a programming error and panic.
func NewSchema(t EntityType, groups ...[]*Accessor) *Schema {
	s := &Schema{entityType: t, index: make(map[string]*Accessor)}
	for _, group := range groups {
		for _, a := range group {
			key := fieldKey(a.name)
			if _, dup := s.index[key]; dup {
				panic(fmt.Sprintf("intent: duplicate field %q in %s schema", a.name, t))
			}
			s.index[key] = a
			s.fields = append(s.fields, a)
			if a.status {
				s.status = a
			}
		}
	}
	return s
}

// Type returns the entity type the schema describes.
func (s *Schema) Type() EntityType { return s.entityType }

// Field looks up an accessor. "batch_number", "batchNumber" and
// "BatchNumber" all address the same field.
func (s *Schema) Field(name string) (*Accessor, bool) {
	a, ok := s.index[fieldKey(name)]
	return a, ok
}

// Fields returns accessors in declaration order.
func (s *Schema) Fields() []*Accessor {
	return append([]*Accessor(nil), s.fields...)
}

// StatusField returns the status accessor if the type has one.
func (s *Schema) StatusField() (*Accessor, bool) {
	return s.status, s.status != nil
}

// Snapshot reads every field of e in display form.
func (s *Schema) Snapshot(e Entity) map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, a := range s.fields {
		if v, err := a.Get(e); err == nil {
			out[a.name] = v
		}
	}
	return out
}

func fieldKey(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == '_' || r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
