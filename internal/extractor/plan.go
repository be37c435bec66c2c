package extractor

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gofixture/internal/fixture"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/types"
)

// Plan turns one root key into the bundles to write for it.
type Plan interface {
	// Name describes the plan in logs.
	Name() string
	// Bundles extracts everything one root key produces.
	Bundles(ctx context.Context, w *Walker, key interface{}) ([]fixture.Bundle, types.ExtractStats, error)
}

// ReflectedPlan walks the closure of one root type, discovering relations
// from the schema registry.
type ReflectedPlan struct {
	Type      schema.LogicalType
	FilterKey string // defaults to "pk"
}

// NewReflectedPlan builds a plan rooted at t.
func NewReflectedPlan(t schema.LogicalType, filterKey string) *ReflectedPlan {
	if filterKey == "" {
		filterKey = types.PKKey
	}
	return &ReflectedPlan{Type: t, FilterKey: filterKey}
}

func (p *ReflectedPlan) Name() string {
	return p.Type.String()
}

// Bundles writes one document "<app>.<model>.json" into "<model>_<key>".
func (p *ReflectedPlan) Bundles(ctx context.Context, w *Walker, key interface{}) ([]fixture.Bundle, types.ExtractStats, error) {
	entries, stats, err := w.ExtractWithStats(ctx, p.Type, p.FilterKey, key)
	if err != nil {
		return nil, stats, err
	}
	return []fixture.Bundle{{
		Dir:   fixture.RootDirName(p.Type.Model, key),
		Files: []fixture.File{{Name: fixture.ReflectedFileName(p.Type), Entries: entries}},
	}}, stats, nil
}

// DeclaredPlan reads the records named by a declared schema tree. Every
// node is filtered by the root key, under the node's own filter key.
type DeclaredPlan struct {
	Schema     *DeclaredSchema
	SplitFiles bool
}

// NewDeclaredPlan builds a plan over a parsed schema.
func NewDeclaredPlan(s *DeclaredSchema, split bool) *DeclaredPlan {
	return &DeclaredPlan{Schema: s, SplitFiles: split}
}

func (p *DeclaredPlan) Name() string {
	return fmt.Sprintf("declared schema (%d entries)", len(p.Schema.Entries))
}

// Bundles returns one bundle per schema entry, "<entry>_<key>". Without
// splitting a bundle holds one document named after the entry's model;
// with splitting each node gets its own numbered document.
func (p *DeclaredPlan) Bundles(ctx context.Context, w *Walker, key interface{}) ([]fixture.Bundle, types.ExtractStats, error) {
	var stats types.ExtractStats
	bundles := make([]fixture.Bundle, 0, len(p.Schema.Entries))

	for _, entry := range p.Schema.Entries {
		files, _, err := p.collect(ctx, w, entry.Node, key, 1, &stats)
		if err != nil {
			return nil, stats, fmt.Errorf("entry %s: %w", entry.Name, err)
		}
		if !p.SplitFiles {
			var all []fixture.Entry
			for _, f := range files {
				all = append(all, f.Entries...)
			}
			files = []fixture.File{{Name: entry.Node.ModelName + ".json", Entries: all}}
		}
		bundles = append(bundles, fixture.Bundle{
			Dir:   fixture.RootDirName(entry.Name, key),
			Files: files,
		})
	}
	return bundles, stats, nil
}

// collect reads node, then its parent chain, then its dependencies in
// document order. seq numbers the documents and is returned advanced.
func (p *DeclaredPlan) collect(ctx context.Context, w *Walker, node *DeclaredNode, key interface{}, seq int, stats *types.ExtractStats) ([]fixture.File, int, error) {
	m, err := w.Registry().ResolveName(node.ModelName)
	if err != nil {
		return nil, seq, err
	}

	filterKey := node.FilterKey
	var value interface{}
	if filterKey != "" {
		value = key
	}
	entries, err := w.Fetch(ctx, m.Type, filterKey, value)
	stats.Queries++
	if err != nil {
		return nil, seq, err
	}
	stats.RecordsFound += len(entries)

	files := []fixture.File{{Name: fixture.SplitFileName(seq, node.ModelName), Entries: entries}}
	seq++

	if node.Parent != nil {
		parent, next, err := p.collect(ctx, w, node.Parent, key, seq, stats)
		if err != nil {
			return nil, seq, err
		}
		files = append(files, parent...)
		seq = next
	}
	for _, dep := range node.Dependencies {
		deps, next, err := p.collect(ctx, w, dep.Node, key, seq, stats)
		if err != nil {
			return nil, seq, err
		}
		files = append(files, deps...)
		seq = next
	}
	return files, seq, nil
}
