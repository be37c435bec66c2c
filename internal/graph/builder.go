package graph

import (
	"fmt"
	"sort"

	"github.com/dbsmedya/gofixture/internal/schema"
)

// Builder constructs a dependency graph from a schema registry.
type Builder struct {
	registry *schema.Registry
	only     map[string]bool
}

// NewBuilder creates a new graph builder for the given registry.
func NewBuilder(reg *schema.Registry) *Builder {
	return &Builder{registry: reg}
}

// Only restricts the graph to the named models. Foreign keys leaving the set
// add no edge.
func (b *Builder) Only(models ...schema.LogicalType) *Builder {
	b.only = make(map[string]bool, len(models))
	for _, m := range models {
		b.only[m.String()] = true
	}
	return b
}

// Build creates one node per model and an edge target -> owner for every
// foreign key. Many-to-many links are written after all entity rows, so
// they add no ordering constraint.
func (b *Builder) Build() (*Graph, error) {
	if b.registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}

	g := NewGraph()
	models := b.registry.Models()
	for _, m := range models {
		if !b.includes(m.Type) {
			continue
		}
		g.AddNode(m.Type.String(), &Node{Table: m.Table, PrimaryKey: m.PrimaryKey})
	}

	for _, m := range models {
		if !b.includes(m.Type) {
			continue
		}
		for _, fk := range m.ForeignKeys {
			if !b.registry.Has(fk.Target) {
				return nil, fmt.Errorf("foreign key %s.%s: %w", m.Type, fk.Attribute, &schema.UnknownTypeError{Name: fk.Target.String()})
			}
			if !b.includes(fk.Target) {
				continue
			}
			g.AddEdgeWithMeta(fk.Target.String(), m.Type.String(), EdgeMeta{Attribute: fk.Attribute, Column: fk.Column})
		}
	}

	// Deterministic traversal order for Kahn's queue
	for name := range g.Children {
		sort.Strings(g.Children[name])
	}
	for name := range g.Parents {
		sort.Strings(g.Parents[name])
	}
	return g, nil
}

func (b *Builder) includes(t schema.LogicalType) bool {
	return b.only == nil || b.only[t.String()]
}

// BuildFromRegistry is a convenience function that builds the full graph of
// a registry.
func BuildFromRegistry(reg *schema.Registry) (*Graph, error) {
	return NewBuilder(reg).Build()
}
