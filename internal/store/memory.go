package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/types"
)

// MemoryStore keeps records in memory. It serves tests and acts as a reload
// target for round-trip checks without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	registry *schema.Registry
	tables   map[string]*memTable
}

type memTable struct {
	byKey map[string]*types.Record
	order []*types.Record
}

// NewMemoryStore creates an empty store for the models of reg.
func NewMemoryStore(reg *schema.Registry) *MemoryStore {
	return &MemoryStore{registry: reg, tables: make(map[string]*memTable)}
}

// Add stores a record given as attribute/value pairs (projection attributes,
// pk excluded). The record's key is read from the model's primary key column.
// Adding an existing key replaces the record.
func (s *MemoryStore) Add(t schema.LogicalType, kv ...interface{}) error {
	m, err := s.registry.Resolve(t)
	if err != nil {
		return err
	}
	_, err = s.put(m, types.RecordFromPairs(kv...), true)
	return err
}

// MustAdd is Add that panics; for test fixtures.
func (s *MemoryStore) MustAdd(t schema.LogicalType, kv ...interface{}) *MemoryStore {
	if err := s.Add(t, kv...); err != nil {
		panic(err)
	}
	return s
}

// put normalizes fields into a stored record. Missing projection attributes
// are stored as nil, M2M lists as ascending lists.
func (s *MemoryStore) put(m *schema.Model, fields *types.Record, replace bool) (bool, error) {
	pk, err := rowPK(m, fields)
	if err != nil {
		return false, err
	}

	rec := types.NewRecord()
	rec.Set(types.PKKey, pk)
	for _, f := range m.Fields {
		v, _ := fields.Get(f)
		rec.Set(f, v)
	}
	for _, fk := range m.ForeignKeys {
		v, _ := fields.Get(fk.Attribute)
		rec.Set(fk.Attribute, v)
	}
	for _, mm := range m.ManyToMany {
		v, _ := fields.Get(mm.Attribute)
		var list []interface{}
		if !types.IsEmptyKey(v) {
			list = append(list, keyList(v)...)
		}
		sortKeys(list)
		if list == nil {
			list = []interface{}{}
		}
		rec.Set(mm.Attribute, list)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, ok := s.tables[m.Type.String()]
	if !ok {
		tbl = &memTable{byKey: make(map[string]*types.Record)}
		s.tables[m.Type.String()] = tbl
	}
	key := types.CanonicalKey(pk)
	if old, exists := tbl.byKey[key]; exists {
		if !replace {
			return false, nil
		}
		for i, r := range tbl.order {
			if r == old {
				tbl.order[i] = rec
			}
		}
		tbl.byKey[key] = rec
		return true, nil
	}
	tbl.byKey[key] = rec
	tbl.order = append(tbl.order, rec)
	sort.SliceStable(tbl.order, func(i, j int) bool {
		a, _ := tbl.order[i].PK()
		b, _ := tbl.order[j].PK()
		return compareKeys(a, b) < 0
	})
	return true, nil
}

// Query returns copies of the matching records ordered by primary key.
func (s *MemoryStore) Query(ctx context.Context, t schema.LogicalType, f *Filter) ([]*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := s.registry.Resolve(t)
	if err != nil {
		return nil, err
	}
	rf, err := resolveFilter(m, f)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tbl, ok := s.tables[m.Type.String()]
	if !ok {
		return nil, nil
	}

	var out []*types.Record
	for _, rec := range tbl.order {
		if matches(m, rec, rf, f) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func matches(m *schema.Model, rec *types.Record, rf resolvedFilter, f *Filter) bool {
	switch rf.kind {
	case filterNone:
		return true
	case filterPK:
		pk, _ := rec.PK()
		return matchesAny(pk, rf.value)
	case filterColumn:
		v, _ := rec.Get(f.Attribute)
		if rf.value == nil {
			return v == nil
		}
		return v != nil && matchesAny(v, rf.value)
	case filterManyToMany:
		if rf.value == nil {
			return false
		}
		v, _ := rec.Get(rf.m2m.Attribute)
		list, _ := v.([]interface{})
		for _, item := range list {
			if matchesAny(item, rf.value) {
				return true
			}
		}
	}
	return false
}

// matchesAny compares v with a key or any key of a list, by canonical form.
func matchesAny(v, want interface{}) bool {
	key := types.CanonicalKey(v)
	for _, w := range keyList(want) {
		if types.CanonicalKey(w) == key {
			return true
		}
	}
	return false
}

// InsertRows stores rows, ignoring keys that already exist.
func (s *MemoryStore) InsertRows(ctx context.Context, rows []Row, _ InsertOptions) (InsertResult, error) {
	var res InsertResult
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("load interrupted: %w", err)
		}
		m, err := s.registry.Resolve(row.Type)
		if err != nil {
			return res, err
		}
		inserted, err := s.put(m, row.Fields, false)
		if err != nil {
			return res, err
		}
		if !inserted {
			res.Skipped++
			continue
		}
		res.Rows++
		for _, mm := range m.ManyToMany {
			v, _ := row.Fields.Get(mm.Attribute)
			if !types.IsEmptyKey(v) {
				res.Links += len(keyList(v))
			}
		}
	}
	return res, nil
}

// Len returns the number of records stored for t.
func (s *MemoryStore) Len(t schema.LogicalType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tbl, ok := s.tables[t.String()]; ok {
		return len(tbl.order)
	}
	return 0
}
