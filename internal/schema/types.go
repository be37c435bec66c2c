// Package schema describes record kinds and classifies their attributes into
// scalar fields, declared relations and target relations.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// LogicalType identifies a record kind by namespace ("app") and type name ("model").
type LogicalType struct {
	App   string
	Model string
}

// NewLogicalType returns a normalized (lowercased) logical type.
func NewLogicalType(app, model string) LogicalType {
	return LogicalType{App: strings.ToLower(app), Model: strings.ToLower(model)}
}

// ParseLogicalType parses "app.model".
func ParseLogicalType(s string) (LogicalType, error) {
	app, model, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || app == "" || model == "" || strings.Contains(model, ".") {
		return LogicalType{}, fmt.Errorf("invalid model %q (expected app.model)", s)
	}
	return NewLogicalType(app, model), nil
}

// String renders the type as "app.model" with the model lowercased.
func (t LogicalType) String() string {
	return strings.ToLower(t.App) + "." + strings.ToLower(t.Model)
}

// IsZero reports whether t is the zero value.
func (t LogicalType) IsZero() bool {
	return t.App == "" && t.Model == ""
}

// Compare orders types by app then model.
func (t LogicalType) Compare(o LogicalType) int {
	return strings.Compare(t.String(), o.String())
}

// Kind classifies a FieldDescriptor.
type Kind int

const (
	KindScalar Kind = iota
	KindForeignKey
	KindManyToMany
	KindReverseForeignKey
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "field"
	case KindForeignKey:
		return "foreign_key"
	case KindManyToMany:
		return "many_to_many"
	case KindReverseForeignKey:
		return "reverse_foreign_key"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FieldDescriptor describes one attribute of a logical type.
//
// Owner is the type that declares the attribute. For target relations this
// is the other type, the one holding the foreign value. Related is the type
// on the far side of the relation; it is zero for scalars.
type FieldDescriptor struct {
	Owner     LogicalType
	Related   LogicalType
	Attribute string
	Kind      Kind
	OwnedHere bool
}

// IsRelation reports whether the descriptor is anything but a scalar.
func (f FieldDescriptor) IsRelation() bool {
	return f.Kind != KindScalar
}

// Validate checks the descriptor invariants.
func (f FieldDescriptor) Validate() error {
	if f.Attribute == "" {
		return fmt.Errorf("descriptor on %s has no attribute name", f.Owner)
	}
	if f.Kind == KindScalar {
		if !f.OwnedHere {
			return fmt.Errorf("scalar %s.%s must be owned by its type", f.Owner, f.Attribute)
		}
		if !f.Related.IsZero() {
			return fmt.Errorf("scalar %s.%s cannot have a related type", f.Owner, f.Attribute)
		}
		return nil
	}
	if f.Related.IsZero() {
		return fmt.Errorf("relation %s.%s has no related type", f.Owner, f.Attribute)
	}
	if f.Kind == KindReverseForeignKey && f.OwnedHere {
		return fmt.Errorf("reverse relation %s.%s cannot be owned here", f.Owner, f.Attribute)
	}
	return nil
}

// Compare orders descriptors by owner, attribute, related type, kind and
// finally ownership, so sets built along different paths compare equal.
func (f FieldDescriptor) Compare(o FieldDescriptor) int {
	if c := f.Owner.Compare(o.Owner); c != 0 {
		return c
	}
	if c := strings.Compare(f.Attribute, o.Attribute); c != 0 {
		return c
	}
	if c := f.Related.Compare(o.Related); c != 0 {
		return c
	}
	if f.Kind != o.Kind {
		if f.Kind < o.Kind {
			return -1
		}
		return 1
	}
	if f.OwnedHere != o.OwnedHere {
		if f.OwnedHere {
			return -1
		}
		return 1
	}
	return 0
}

func (f FieldDescriptor) String() string {
	if f.Kind == KindScalar {
		return fmt.Sprintf("%s.%s (%s)", f.Owner, f.Attribute, f.Kind)
	}
	return fmt.Sprintf("%s.%s -> %s (%s, owned=%v)", f.Owner, f.Attribute, f.Related, f.Kind, f.OwnedHere)
}

// SortDescriptors sorts descriptors in place and returns them.
func SortDescriptors(fields []FieldDescriptor) []FieldDescriptor {
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Compare(fields[j]) < 0
	})
	return fields
}

// ForeignKey is a many-to-one relation declared by a model.
type ForeignKey struct {
	Attribute string      `yaml:"attribute"` // Record attribute name
	Column    string      `yaml:"column"`    // Storage column (defaults to Attribute)
	Target    LogicalType `yaml:"-"`
}

// ManyToMany is a many-to-many relation declared by a model, stored in a
// through table holding (SourceColumn -> owner pk, TargetColumn -> target pk).
type ManyToMany struct {
	Attribute    string      `yaml:"attribute"`
	Target       LogicalType `yaml:"-"`
	Through      string      `yaml:"through"`
	SourceColumn string      `yaml:"source_column"`
	TargetColumn string      `yaml:"target_column"`
}

// Model is the storage description of one logical type.
type Model struct {
	Type        LogicalType
	Table       string       // Storage table name
	PrimaryKey  string       // PK column name
	Fields      []string     // Scalar columns in declaration order (PK column included)
	ForeignKeys []ForeignKey // Declared FK relations
	ManyToMany  []ManyToMany // Declared M2M relations
}

// ForeignKeyByAttribute looks up a declared FK by attribute name.
func (m *Model) ForeignKeyByAttribute(attr string) (ForeignKey, bool) {
	for _, fk := range m.ForeignKeys {
		if fk.Attribute == attr {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// ManyToManyByAttribute looks up a declared M2M by attribute name.
func (m *Model) ManyToManyByAttribute(attr string) (ManyToMany, bool) {
	for _, mm := range m.ManyToMany {
		if mm.Attribute == attr {
			return mm, true
		}
	}
	return ManyToMany{}, false
}

// HasField reports whether attr is a scalar field of the model.
func (m *Model) HasField(attr string) bool {
	for _, f := range m.Fields {
		if f == attr {
			return true
		}
	}
	return false
}

// Projection returns the attribute names fetched for a record: scalars,
// then FK attributes, then M2M attributes.
func (m *Model) Projection() []string {
	out := make([]string, 0, len(m.Fields)+len(m.ForeignKeys)+len(m.ManyToMany))
	out = append(out, m.Fields...)
	for _, fk := range m.ForeignKeys {
		out = append(out, fk.Attribute)
	}
	for _, mm := range m.ManyToMany {
		out = append(out, mm.Attribute)
	}
	return out
}

// HasAttribute reports whether attr is any attribute the model declares.
func (m *Model) HasAttribute(attr string) bool {
	if m.HasField(attr) {
		return true
	}
	if _, ok := m.ForeignKeyByAttribute(attr); ok {
		return true
	}
	_, ok := m.ManyToManyByAttribute(attr)
	return ok
}
