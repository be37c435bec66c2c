package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/gofixture/internal/graph"
	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/types"
)

// LoadStats contains statistics about a load.
type LoadStats struct {
	InsertResult
	Models      int           // Models with at least one row
	Duration    time.Duration // Time taken
	CyclicOrder bool          // Rows were loaded in fallback order
}

// Loader writes fixture rows into a Sink parent-first, following the model
// dependency graph.
type Loader struct {
	sink      Sink
	registry  *schema.Registry
	graph     *graph.Graph
	disableFK bool
	logger    *logger.Logger
}

// NewLoader creates a loader. When disableFK is set, cyclic schemas load in
// fallback order with foreign key checks disabled; otherwise they fail.
func NewLoader(sink Sink, reg *schema.Registry, disableFK bool, log *logger.Logger) (*Loader, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	g, err := graph.BuildFromRegistry(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	return &Loader{sink: sink, registry: reg, graph: g, disableFK: disableFK, logger: log}, nil
}

// Order sorts rows parent-first. Rows of one model keep their document
// order, except that rows of a self-referencing model are placed after the
// rows they point at. cyclic reports that the model graph has a cycle and
// the fallback order was used.
func (l *Loader) Order(rows []Row) (ordered []Row, cyclic bool, err error) {
	byModel := make(map[string][]Row)
	for _, row := range rows {
		m, err := l.registry.Resolve(row.Type)
		if err != nil {
			return nil, false, err
		}
		name := m.Type.String()
		byModel[name] = append(byModel[name], row)
	}

	order, err := l.graph.LoadOrderWithFallback()
	if err != nil {
		if !errors.Is(err, graph.ErrCycleDetected) || !l.disableFK {
			return nil, false, fmt.Errorf("cannot order rows: %w", err)
		}
		l.logger.Warnw("Model graph is cyclic, loading in fallback order with foreign key checks disabled", "error", err.Error())
		cyclic = true
	}

	ordered = make([]Row, 0, len(rows))
	for _, name := range order {
		group := byModel[name]
		if len(group) == 0 {
			continue
		}
		if refs := l.graph.SelfReferences(name); len(refs) > 0 {
			group = orderSelfReferencing(group, refs, l.graph.GetPK(name))
		}
		ordered = append(ordered, group...)
	}
	return ordered, cyclic, nil
}

// orderSelfReferencing emits a row once every row it references within the
// group has been emitted. Rows stuck on a cycle follow in document order.
func orderSelfReferencing(rows []Row, refs []graph.EdgeMeta, pkColumn string) []Row {
	keyOf := func(r Row) string {
		pk, ok := r.Fields.Get(pkColumn)
		if !ok {
			pk, _ = r.Fields.PK()
		}
		return types.CanonicalKey(pk)
	}

	present := make(map[string]bool, len(rows))
	for _, r := range rows {
		present[keyOf(r)] = true
	}

	out := make([]Row, 0, len(rows))
	emitted := make(map[string]bool, len(rows))
	pending := rows
	for len(pending) > 0 {
		var next []Row
		for _, r := range pending {
			if ready(r, keyOf(r), refs, present, emitted) {
				out = append(out, r)
				emitted[keyOf(r)] = true
				continue
			}
			next = append(next, r)
		}
		if len(next) == len(pending) {
			return append(out, next...)
		}
		pending = next
	}
	return out
}

func ready(r Row, self string, refs []graph.EdgeMeta, present, emitted map[string]bool) bool {
	for _, ref := range refs {
		v, _ := r.Fields.Get(ref.Attribute)
		if v == nil {
			continue
		}
		key := types.CanonicalKey(v)
		if key == self {
			continue
		}
		if present[key] && !emitted[key] {
			return false
		}
	}
	return true
}

// Load orders rows and inserts them in one batch.
func (l *Loader) Load(ctx context.Context, rows []Row) (*LoadStats, error) {
	start := time.Now()

	ordered, cyclic, err := l.Order(rows)
	if err != nil {
		return nil, err
	}

	models := make(map[string]bool)
	for _, r := range ordered {
		models[r.Type.String()] = true
	}
	l.logger.Infof("Loading %d rows across %d models", len(ordered), len(models))

	res, err := l.sink.InsertRows(ctx, ordered, InsertOptions{DisableForeignKeyChecks: l.disableFK})
	if err != nil {
		return nil, fmt.Errorf("load failed: %w", err)
	}

	stats := &LoadStats{
		InsertResult: res,
		Models:       len(models),
		Duration:     time.Since(start),
		CyclicOrder:  cyclic,
	}
	l.logger.Infof("Load complete: %d rows, %d skipped, %d links, duration: %s",
		stats.Rows, stats.Skipped, stats.Links, stats.Duration)
	return stats, nil
}
