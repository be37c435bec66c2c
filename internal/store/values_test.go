package store

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dbsmedya/gofixture/internal/schema/schematest"
	"github.com/dbsmedya/gofixture/internal/types"
)

func TestConvertBytes_ByDatabaseType(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name   string
		raw    []byte
		dbType string
		want   interface{}
	}{
		{"int", []byte("42"), "INT", int64(42)},
		{"unsigned bigint", []byte("7"), "UNSIGNED BIGINT", int64(7)},
		{"double", []byte("1.5"), "DOUBLE", 1.5},
		{"date", []byte("2024-02-29"), "DATE", types.NewDate(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))},
		{"datetime", []byte("2024-02-29 10:11:12"), "DATETIME", time.Date(2024, 2, 29, 10, 11, 12, 0, time.UTC)},
		{"binary(16) stays bytes", id[:], "BINARY", id[:]},
		{"blob", []byte{0xff, 0x00}, "BLOB", []byte{0xff, 0x00}},
		{"bytea", []byte("raw"), "BYTEA", []byte("raw")},
		{"text uuid", []byte(id.String()), "UUID", id},
		{"varchar", []byte("hello"), "VARCHAR", "hello"},
		{"unparseable int", []byte("n/a"), "INT", "n/a"},
		{"unknown type", []byte("x"), "", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertBytes(tt.raw, tt.dbType))
		})
	}
}

func TestNormalizeScanned_WithoutColumnType(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))

	assert.Nil(t, normalizeScanned(nil, nil))
	assert.Equal(t, ts.UTC(), normalizeScanned(ts, nil))
	assert.Equal(t, int64(3), normalizeScanned(int32(3), nil))
	assert.Equal(t, int64(3), normalizeScanned(3, nil))
	assert.Equal(t, float64(1.5), normalizeScanned(float32(1.5), nil))
	assert.Equal(t, "abc", normalizeScanned([]byte("abc"), nil))
	assert.Equal(t, true, normalizeScanned(true, nil))
}

func TestToDriverValue(t *testing.T) {
	id := uuid.New()

	got := toDriverValue("2024-01-02T03:04:05.678Z")
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 678000000, time.UTC), got)

	assert.Equal(t, "2024-01-02", toDriverValue("2024-01-02"))
	assert.Equal(t, "plain", toDriverValue("plain"))
	assert.Equal(t, id.String(), toDriverValue(id))
	assert.Equal(t, "2024-01-02", toDriverValue(types.NewDate(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))))
	assert.Equal(t, "a.png", toDriverValue(types.FileRef{Name: "a.png"}))
	assert.Equal(t, int64(5), toDriverValue(int64(5)))
}

func TestToColumnValue(t *testing.T) {
	assert.Equal(t, []byte{0xff, 0x00, 0x10}, toColumnValue("/wAQ", true))
	assert.Equal(t, "/wAQ", toColumnValue("/wAQ", false))
	assert.Equal(t, "not base64!", toColumnValue("not base64!", true))
	assert.Equal(t, int64(1), toColumnValue(int64(1), true))
}

func TestSortKeys(t *testing.T) {
	keys := []interface{}{int64(10), "2", int64(1)}
	sortKeys(keys)
	assert.Equal(t, []interface{}{int64(1), "2", int64(10)}, keys)

	words := []interface{}{"b", "a", "c"}
	sortKeys(words)
	assert.Equal(t, []interface{}{"a", "b", "c"}, words)

	// Unsigned keys past the int64 range fall back to canonical text.
	_, ok := asInt(uint64(math.MaxUint64))
	assert.False(t, ok)
	big := []interface{}{uint64(math.MaxUint64), uint64(7)}
	sortKeys(big)
	assert.Equal(t, []interface{}{uint64(math.MaxUint64), uint64(7)}, big)
}

func TestFilter_String(t *testing.T) {
	var nilFilter *Filter
	assert.Equal(t, "<all>", nilFilter.String())
	assert.Equal(t, "artist=1", Eq("artist", int64(1)).String())
	assert.Equal(t, "pk=[1,2]", Eq("pk", []interface{}{1, 2}).String())
}

func TestResolveFilter(t *testing.T) {
	reg := schematest.MusicRegistry()
	song, _ := reg.Resolve(schematest.Song)

	rf, err := resolveFilter(song, Eq("album", 1))
	assert.NoError(t, err)
	assert.Equal(t, filterColumn, rf.kind)
	assert.Equal(t, "album_id", rf.column)

	rf, err = resolveFilter(song, Eq("artists", 1))
	assert.NoError(t, err)
	assert.Equal(t, filterManyToMany, rf.kind)
	assert.Equal(t, "testapp_song_artists", rf.m2m.Through)

	rf, err = resolveFilter(song, Eq("id", 1))
	assert.NoError(t, err)
	assert.Equal(t, filterPK, rf.kind)

	rf, err = resolveFilter(song, nil)
	assert.NoError(t, err)
	assert.Equal(t, filterNone, rf.kind)
}
