// Package extractor walks the dependency closure of root records and turns
// it into fixture bundles.
package extractor

import (
	"context"
	"errors"
	"time"

	"github.com/dbsmedya/gofixture/internal/fixture"
	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/store"
	"github.com/dbsmedya/gofixture/internal/types"
)

// VisitKey identifies one query of a walk. Origin is the type whose record
// triggered the query; for the root query it is the root type itself.
type VisitKey struct {
	Origin      schema.LogicalType
	Target      schema.LogicalType
	FilterKey   string
	FilterValue string
}

// history is the set of visit keys of one root key.
type history map[VisitKey]struct{}

// Walker extracts the closure of records reachable from a root query by
// following declared relations (the record's own foreign values) and target
// relations (other types' foreign values equal to the record's key).
//
// A record reached along two different paths is emitted twice: only
// identical visit keys are suppressed.
type Walker struct {
	reflector *schema.Reflector
	store     store.Store
	logger    *logger.Logger
	maxDepth  int
}

// NewWalker creates a walker reading from s.
func NewWalker(r *schema.Reflector, s store.Store, log *logger.Logger) *Walker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Walker{reflector: r, store: s, logger: log}
}

// SetMaxDepth bounds the recursion depth; 0 means unlimited.
func (w *Walker) SetMaxDepth(depth int) {
	if depth < 0 {
		depth = 0
	}
	w.maxDepth = depth
}

// Registry returns the schema the walker reflects on.
func (w *Walker) Registry() *schema.Registry {
	return w.reflector.Registry()
}

// walk carries the per-root state of one extraction.
type walk struct {
	seen    history
	entries []fixture.Entry
	stats   types.ExtractStats
}

// Extract returns the closure of the records of root where filterKey equals
// filterValue (every record when filterKey is empty), in visit order.
func (w *Walker) Extract(ctx context.Context, root schema.LogicalType, filterKey string, filterValue interface{}) ([]fixture.Entry, error) {
	entries, _, err := w.ExtractWithStats(ctx, root, filterKey, filterValue)
	return entries, err
}

// ExtractWithStats is Extract plus walk statistics.
func (w *Walker) ExtractWithStats(ctx context.Context, root schema.LogicalType, filterKey string, filterValue interface{}) ([]fixture.Entry, types.ExtractStats, error) {
	m, err := w.reflector.Registry().Resolve(root)
	if err != nil {
		return nil, types.ExtractStats{}, err
	}

	start := time.Now()
	st := &walk{seen: make(history)}
	err = w.visit(ctx, st, m.Type, m.Type, filterKey, filterValue, 0)
	st.stats.Duration = time.Since(start)
	st.stats.RecordsFound = len(st.entries)
	if err != nil {
		return nil, st.stats, err
	}

	w.logger.Debugw("Walk complete",
		"model", m.Type.String(),
		"records", st.stats.RecordsFound,
		"queries", st.stats.Queries,
		"max_depth", st.stats.MaxDepth,
		"duration", st.stats.Duration)
	return st.entries, st.stats, nil
}

func (w *Walker) visit(ctx context.Context, st *walk, origin, t schema.LogicalType, filterKey string, value interface{}, depth int) error {
	key := VisitKey{Origin: origin, Target: t, FilterKey: filterKey, FilterValue: types.CanonicalKey(value)}
	if _, ok := st.seen[key]; ok {
		return nil
	}
	st.seen[key] = struct{}{}

	if w.maxDepth > 0 && depth > w.maxDepth {
		return &WalkError{Type: t, FilterKey: filterKey, FilterValue: key.FilterValue, Err: ErrMaxDepthExceeded}
	}
	if depth > st.stats.MaxDepth {
		st.stats.MaxDepth = depth
	}

	records, err := w.fetch(ctx, t, filterKey, value)
	st.stats.Queries++
	if err != nil {
		return err
	}

	declared, err := w.reflector.ListDeclaredRelations(t)
	if err != nil {
		return err
	}
	targets, err := w.reflector.ListTargetRelations(t)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := checkRecord(t, rec, declared); err != nil {
			return err
		}
		st.entries = append(st.entries, fixture.FromRecord(t, rec))
		pk, _ := rec.PK()

		for _, rel := range declared {
			v, _ := rec.Get(rel.Attribute)
			if types.IsEmptyKey(v) {
				continue
			}
			if err := w.visit(ctx, st, t, rel.Related, types.PKKey, v, depth+1); err != nil {
				return err
			}
		}
		for _, rel := range targets {
			if err := w.visit(ctx, st, t, rel.Related, rel.Attribute, pk, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Fetch queries one type without following relations. Declared plans use it
// to read each node of their tree.
func (w *Walker) Fetch(ctx context.Context, t schema.LogicalType, filterKey string, value interface{}) ([]fixture.Entry, error) {
	records, err := w.fetch(ctx, t, filterKey, value)
	if err != nil {
		return nil, err
	}
	declared, err := w.reflector.ListDeclaredRelations(t)
	if err != nil {
		return nil, err
	}
	entries := make([]fixture.Entry, 0, len(records))
	for _, rec := range records {
		if err := checkRecord(t, rec, declared); err != nil {
			return nil, err
		}
		entries = append(entries, fixture.FromRecord(t, rec))
	}
	return entries, nil
}

func (w *Walker) fetch(ctx context.Context, t schema.LogicalType, filterKey string, value interface{}) ([]*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var f *store.Filter
	if filterKey != "" {
		f = store.Eq(filterKey, value)
	}
	records, err := w.store.Query(ctx, t, f)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &WalkError{Type: t, FilterKey: filterKey, FilterValue: types.CanonicalKey(value), Err: err}
	}

	w.logger.Debugw("Fetched records", "model", t.String(), "filter", f.String(), "count", len(records))
	return records, nil
}

// checkRecord verifies that a record carries its key and every declared
// relation attribute.
func checkRecord(t schema.LogicalType, rec *types.Record, declared []schema.FieldDescriptor) error {
	pk, ok := rec.PK()
	if !ok || pk == nil {
		return &MalformedRecordError{Type: t, Attribute: types.PKKey}
	}
	for _, rel := range declared {
		if !rec.Has(rel.Attribute) {
			return &MalformedRecordError{Type: t, Attribute: rel.Attribute, PK: pk}
		}
	}
	return nil
}
