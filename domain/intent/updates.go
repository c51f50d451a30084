package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FieldUpdate One proposed (field, raw value) pair
type FieldUpdate struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// FieldUpdates Ordered field update set. Encodes as a JSON object whose key
// order is the set's order.
type FieldUpdates []FieldUpdate

// UpdatesFromMap builds an update set with keys in lexical order, since map
// iteration carries no order of its own.
func UpdatesFromMap(m map[string]any) FieldUpdates {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(FieldUpdates, 0, len(keys))
	for _, k := range keys {
		out = append(out, FieldUpdate{Field: k, Value: m[k]})
	}
	return out
}

// ParseUpdates accepts the shapes intent context uses for "updates": a JSON
// object, a list of {field, value} items, or a JSON string of either.
func ParseUpdates(raw any) (FieldUpdates, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case FieldUpdates:
		return v, nil
	case map[string]any:
		return UpdatesFromMap(v), nil
	case []any:
		out := make(FieldUpdates, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("updates[%d]: expected object, got %T", i, item)
			}
			name, _ := m["field"].(string)
			if strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("updates[%d]: field name is empty", i)
			}
			out = append(out, FieldUpdate{Field: name, Value: m["value"]})
		}
		return out, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out FieldUpdates
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("updates: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("updates: unsupported shape %T", raw)
	}
}

// IsEmpty reports whether there is nothing to apply.
func (u FieldUpdates) IsEmpty() bool { return len(u) == 0 }

// Fields returns the field names in order.
func (u FieldUpdates) Fields() []string {
	out := make([]string, len(u))
	for i, f := range u {
		out[i] = f.Field
	}
	return out
}

// Get returns the raw value of field, matched exactly.
func (u FieldUpdates) Get(field string) (any, bool) {
	for _, f := range u {
		if f.Field == field {
			return f.Value, true
		}
	}
	return nil, false
}

// Map flattens the set. Later duplicates win.
func (u FieldUpdates) Map() map[string]any {
	out := make(map[string]any, len(u))
	for _, f := range u {
		out[f.Field] = f.Value
	}
	return out
}

// With returns a copy with field set, replacing an existing entry in place.
func (u FieldUpdates) With(field string, value any) FieldUpdates {
	out := append(FieldUpdates(nil), u...)
	for i := range out {
		if out[i].Field == field {
			out[i].Value = value
			return out
		}
	}
	return append(out, FieldUpdate{Field: field, Value: value})
}

func (u FieldUpdates) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range u {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("updates[%s]: %w", f.Field, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the object's key order. A JSON array of
// {field, value} items is accepted as well.
func (u *FieldUpdates) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var items []FieldUpdate
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*u = items
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil {
		return err
	} else if tok != json.Delim('{') {
		return fmt.Errorf("updates: expected object, got %v", tok)
	}
	var out FieldUpdates
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("updates: unexpected key %v", tok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("updates[%s]: %w", key, err)
		}
		out = append(out, FieldUpdate{Field: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*u = out
	return nil
}
