package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is the explicit schema description: every known model keyed by
// its logical type. It is built ahead of time (hand-declared or introspected)
// and never consults a live ORM.
type Registry struct {
	models map[string]*Model
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register validates and adds a model. Defaults: Table = model name,
// PrimaryKey = "id", FK Column = Attribute.
func (r *Registry) Register(m *Model) error {
	if m == nil {
		return fmt.Errorf("model is nil")
	}
	if m.Type.App == "" || m.Type.Model == "" {
		return fmt.Errorf("model type must have app and model names")
	}
	m.Type = NewLogicalType(m.Type.App, m.Type.Model)

	key := m.Type.String()
	if _, exists := r.models[key]; exists {
		return fmt.Errorf("duplicate model %q", key)
	}

	if m.Table == "" {
		m.Table = m.Type.Model
	}
	if m.PrimaryKey == "" {
		m.PrimaryKey = "id"
	}
	// The key column is a scalar field so serialized records stay reloadable
	if !m.HasField(m.PrimaryKey) {
		m.Fields = append([]string{m.PrimaryKey}, m.Fields...)
	}

	seen := make(map[string]bool)
	for _, f := range m.Fields {
		if f == "" {
			return fmt.Errorf("model %q has an empty field name", key)
		}
		if seen[f] {
			return fmt.Errorf("model %q declares attribute %q twice", key, f)
		}
		seen[f] = true
	}

	for i := range m.ForeignKeys {
		fk := &m.ForeignKeys[i]
		if fk.Attribute == "" {
			return fmt.Errorf("model %q has a foreign key without attribute", key)
		}
		if seen[fk.Attribute] {
			return fmt.Errorf("model %q declares attribute %q twice", key, fk.Attribute)
		}
		seen[fk.Attribute] = true
		if fk.Column == "" {
			fk.Column = fk.Attribute
		}
		if fk.Target.IsZero() {
			return fmt.Errorf("foreign key %s.%s has no target", key, fk.Attribute)
		}
		fk.Target = NewLogicalType(fk.Target.App, fk.Target.Model)
	}

	for i := range m.ManyToMany {
		mm := &m.ManyToMany[i]
		if mm.Attribute == "" {
			return fmt.Errorf("model %q has a many-to-many without attribute", key)
		}
		if seen[mm.Attribute] {
			return fmt.Errorf("model %q declares attribute %q twice", key, mm.Attribute)
		}
		seen[mm.Attribute] = true
		if mm.Target.IsZero() {
			return fmt.Errorf("many-to-many %s.%s has no target", key, mm.Attribute)
		}
		if mm.Through == "" || mm.SourceColumn == "" || mm.TargetColumn == "" {
			return fmt.Errorf("many-to-many %s.%s needs through, source_column and target_column", key, mm.Attribute)
		}
		mm.Target = NewLogicalType(mm.Target.App, mm.Target.Model)
	}

	if seen[pkAttributeReserved] {
		return fmt.Errorf("model %q uses reserved attribute name %q", key, pkAttributeReserved)
	}

	r.models[key] = m
	return nil
}

// pkAttributeReserved mirrors types.PKKey; schema does not import types.
const pkAttributeReserved = "pk"

// MustRegister registers models and panics on error. Intended for tests and
// hand-declared schemas compiled into a program.
func (r *Registry) MustRegister(models ...*Model) *Registry {
	for _, m := range models {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
	return r
}

// Resolve looks a type up; matching is case-insensitive.
func (r *Registry) Resolve(t LogicalType) (*Model, error) {
	m, ok := r.models[t.String()]
	if !ok {
		return nil, &UnknownTypeError{Name: t.String()}
	}
	return m, nil
}

// ResolveName resolves "app.model", or a bare model name when it is unique.
func (r *Registry) ResolveName(name string) (*Model, error) {
	if strings.Contains(name, ".") {
		t, err := ParseLogicalType(name)
		if err != nil {
			return nil, &UnknownTypeError{Name: name}
		}
		return r.Resolve(t)
	}

	var found *Model
	for _, m := range r.models {
		if strings.EqualFold(m.Type.Model, name) {
			if found != nil {
				return nil, fmt.Errorf("model name %q is ambiguous (%s, %s)", name, found.Type, m.Type)
			}
			found = m
		}
	}
	if found == nil {
		return nil, &UnknownTypeError{Name: name}
	}
	return found, nil
}

// Has reports whether t is registered.
func (r *Registry) Has(t LogicalType) bool {
	_, ok := r.models[t.String()]
	return ok
}

// Models returns all models sorted by logical type.
func (r *Registry) Models() []*Model {
	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Type.Compare(out[j].Type) < 0
	})
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.models)
}

// Validate checks that every relation target is registered.
func (r *Registry) Validate() error {
	for _, m := range r.Models() {
		for _, fk := range m.ForeignKeys {
			if !r.Has(fk.Target) {
				return fmt.Errorf("foreign key %s.%s: %w", m.Type, fk.Attribute, &UnknownTypeError{Name: fk.Target.String()})
			}
		}
		for _, mm := range m.ManyToMany {
			if !r.Has(mm.Target) {
				return fmt.Errorf("many-to-many %s.%s: %w", m.Type, mm.Attribute, &UnknownTypeError{Name: mm.Target.String()})
			}
		}
	}
	return nil
}
