package schema

import "sync"

// Reflector turns a logical type into its classified attribute list.
// Results are memoized per type; the registry must not change afterwards.
type Reflector struct {
	registry *Registry

	mu    sync.Mutex
	cache map[string][]FieldDescriptor
}

// NewReflector creates a reflector over the given registry.
func NewReflector(reg *Registry) *Reflector {
	return &Reflector{
		registry: reg,
		cache:    make(map[string][]FieldDescriptor),
	}
}

// Registry returns the underlying schema description.
func (r *Reflector) Registry() *Registry {
	return r.registry
}

// ListAllAttributes enumerates every scalar field, every relation the type
// declares and every relation other types declare pointing at it, sorted
// by (owner, attribute, related, kind).
func (r *Reflector) ListAllAttributes(t LogicalType) ([]FieldDescriptor, error) {
	m, err := r.registry.Resolve(t)
	if err != nil {
		return nil, err
	}

	key := m.Type.String()
	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return append([]FieldDescriptor(nil), cached...), nil
	}

	var fields []FieldDescriptor
	for _, f := range m.Fields {
		fields = append(fields, FieldDescriptor{
			Owner:     m.Type,
			Attribute: f,
			Kind:      KindScalar,
			OwnedHere: true,
		})
	}
	for _, fk := range m.ForeignKeys {
		fields = append(fields, FieldDescriptor{
			Owner:     m.Type,
			Related:   fk.Target,
			Attribute: fk.Attribute,
			Kind:      KindForeignKey,
			OwnedHere: true,
		})
	}
	for _, mm := range m.ManyToMany {
		fields = append(fields, FieldDescriptor{
			Owner:     m.Type,
			Related:   mm.Target,
			Attribute: mm.Attribute,
			Kind:      KindManyToMany,
			OwnedHere: true,
		})
	}

	// Relations declared elsewhere that point at this type
	for _, other := range r.registry.Models() {
		for _, fk := range other.ForeignKeys {
			if fk.Target == m.Type {
				fields = append(fields, FieldDescriptor{
					Owner:     other.Type,
					Related:   other.Type,
					Attribute: fk.Attribute,
					Kind:      KindReverseForeignKey,
					OwnedHere: false,
				})
			}
		}
		for _, mm := range other.ManyToMany {
			if mm.Target == m.Type {
				fields = append(fields, FieldDescriptor{
					Owner:     other.Type,
					Related:   other.Type,
					Attribute: mm.Attribute,
					Kind:      KindManyToMany,
					OwnedHere: false,
				})
			}
		}
	}

	SortDescriptors(fields)

	r.mu.Lock()
	r.cache[key] = fields
	r.mu.Unlock()

	return append([]FieldDescriptor(nil), fields...), nil
}

// ListScalarFields returns the scalar subset.
func (r *Reflector) ListScalarFields(t LogicalType) ([]FieldDescriptor, error) {
	return r.filter(t, func(f FieldDescriptor) bool {
		return f.Kind == KindScalar
	})
}

// ListDeclaredRelations returns outgoing edges: relations the type itself
// declares. The record's value for the attribute identifies the target rows
// by primary key.
func (r *Reflector) ListDeclaredRelations(t LogicalType) ([]FieldDescriptor, error) {
	return r.filter(t, func(f FieldDescriptor) bool {
		return f.OwnedHere && f.Kind != KindScalar
	})
}

// ListTargetRelations returns incoming edges: relations declared by other
// types whose value equals this record's primary key.
func (r *Reflector) ListTargetRelations(t LogicalType) ([]FieldDescriptor, error) {
	return r.filter(t, func(f FieldDescriptor) bool {
		return !f.OwnedHere && f.Kind != KindScalar
	})
}

// ListManyToManyRelations returns M2M relations in either direction.
func (r *Reflector) ListManyToManyRelations(t LogicalType) ([]FieldDescriptor, error) {
	return r.filter(t, func(f FieldDescriptor) bool {
		return f.Kind == KindManyToMany
	})
}

// ListReverseRelations returns reverse foreign keys only.
func (r *Reflector) ListReverseRelations(t LogicalType) ([]FieldDescriptor, error) {
	return r.filter(t, func(f FieldDescriptor) bool {
		return f.Kind == KindReverseForeignKey
	})
}

func (r *Reflector) filter(t LogicalType, keep func(FieldDescriptor) bool) ([]FieldDescriptor, error) {
	all, err := r.ListAllAttributes(t)
	if err != nil {
		return nil, err
	}
	out := make([]FieldDescriptor, 0, len(all))
	for _, f := range all {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out, nil
}
