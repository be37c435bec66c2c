package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofixture/internal/graph"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/schema/schematest"
	"github.com/dbsmedya/gofixture/internal/sqlutil"
	"github.com/dbsmedya/gofixture/internal/types"
)

func rowTypes(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Type.String()
	}
	return out
}

func TestLoader_OrderParentsFirst(t *testing.T) {
	reg := schematest.MusicRegistry()
	l, err := NewLoader(NewMemoryStore(reg), reg, false, testLogger(t))
	require.NoError(t, err)

	rows := musicRows()
	// Document order as the walker emits it from a song: song, album, ...
	shuffled := []Row{rows[4], rows[3], rows[0], rows[2], rows[1]}

	ordered, cyclic, err := l.Order(shuffled)
	require.NoError(t, err)
	assert.False(t, cyclic)
	assert.Equal(t, []string{
		"testapp.artist", "testapp.artist", "testapp.recordlabel", "testapp.album", "testapp.song",
	}, rowTypes(ordered))

	// Rows of one model keep document order
	first, _ := ordered[0].Fields.Get("id")
	assert.Equal(t, int64(1), first)
}

func TestLoader_LoadIntoSQLite(t *testing.T) {
	db := openMusicSQLite(t)
	reg := schematest.MusicRegistry()
	sink, err := NewSQLStore(db, sqlutil.SQLite, reg, testLogger(t))
	require.NoError(t, err)

	l, err := NewLoader(sink, reg, false, testLogger(t))
	require.NoError(t, err)

	rows := musicRows()
	// Duplicated entries, as multiple walk paths produce them
	doc := []Row{rows[4], rows[3], rows[0], rows[2], rows[1], rows[3], rows[0]}

	stats, err := l.Load(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 2, stats.Links)
	assert.Equal(t, 4, stats.Models)
	assert.False(t, stats.CyclicOrder)
}

func cyclicRegistry() *schema.Registry {
	a := schema.NewLogicalType("app", "a")
	b := schema.NewLogicalType("app", "b")
	return schema.NewRegistry().MustRegister(
		&schema.Model{Type: a, Fields: []string{"id"}, ForeignKeys: []schema.ForeignKey{{Attribute: "b", Target: b}}},
		&schema.Model{Type: b, Fields: []string{"id"}, ForeignKeys: []schema.ForeignKey{{Attribute: "a", Target: a}}},
	)
}

func TestLoader_CyclicSchema(t *testing.T) {
	reg := cyclicRegistry()
	rows := []Row{
		{Type: schema.NewLogicalType("app", "b"), Fields: types.RecordFromPairs("id", 1, "a", 1)},
		{Type: schema.NewLogicalType("app", "a"), Fields: types.RecordFromPairs("id", 1, "b", 1)},
	}

	strict, err := NewLoader(NewMemoryStore(reg), reg, false, testLogger(t))
	require.NoError(t, err)
	_, _, err = strict.Order(rows)
	assert.ErrorIs(t, err, graph.ErrCycleDetected)

	relaxed, err := NewLoader(NewMemoryStore(reg), reg, true, testLogger(t))
	require.NoError(t, err)
	ordered, cyclic, err := relaxed.Order(rows)
	require.NoError(t, err)
	assert.True(t, cyclic)
	assert.Equal(t, []string{"app.a", "app.b"}, rowTypes(ordered))

	stats, err := relaxed.Load(context.Background(), rows)
	require.NoError(t, err)
	assert.True(t, stats.CyclicOrder)
	assert.Equal(t, 2, stats.Rows)
}

func TestLoader_SelfReferencingRows(t *testing.T) {
	employee := schema.NewLogicalType("hr", "employee")
	reg := schema.NewRegistry().MustRegister(&schema.Model{
		Type:        employee,
		Fields:      []string{"id", "name"},
		ForeignKeys: []schema.ForeignKey{{Attribute: "manager", Column: "manager_id", Target: employee}},
	})
	l, err := NewLoader(NewMemoryStore(reg), reg, false, testLogger(t))
	require.NoError(t, err)

	rows := []Row{
		{Type: employee, Fields: types.RecordFromPairs("id", 3, "name", "c", "manager", 2)},
		{Type: employee, Fields: types.RecordFromPairs("id", 2, "name", "b", "manager", 1)},
		{Type: employee, Fields: types.RecordFromPairs("id", 1, "name", "a", "manager", nil)},
		{Type: employee, Fields: types.RecordFromPairs("id", 4, "name", "d", "manager", 99)},
	}

	ordered, _, err := l.Order(rows)
	require.NoError(t, err)
	var ids []interface{}
	for _, r := range ordered {
		id, _ := r.Fields.Get("id")
		ids = append(ids, id)
	}
	assert.Equal(t, []interface{}{1, 4, 2, 3}, ids)
}

func TestLoader_Errors(t *testing.T) {
	reg := schematest.MusicRegistry()
	_, err := NewLoader(nil, reg, false, nil)
	assert.ErrorContains(t, err, "sink is nil")

	l, err := NewLoader(NewMemoryStore(reg), reg, false, nil)
	require.NoError(t, err)
	_, err = l.Load(context.Background(), []Row{{Type: schema.NewLogicalType("x", "y"), Fields: types.NewRecord()}})
	assert.ErrorIs(t, err, schema.ErrUnknownType)
}
