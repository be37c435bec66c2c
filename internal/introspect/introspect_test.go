package introspect

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/sqlutil"
)

func musicTables() []*Table {
	return []*Table{
		{Name: "testapp_artist", Columns: []string{"id", "first_name", "last_name", "instrument"}, PrimaryKey: []string{"id"}},
		{Name: "testapp_recordlabel", Columns: []string{"id", "name"}, PrimaryKey: []string{"id"}},
		{
			Name:       "testapp_album",
			Columns:    []string{"id", "artist_id", "name", "release_date", "record_label_id"},
			PrimaryKey: []string{"id"},
			// Deliberately out of column order
			ForeignKeys: []ForeignKey{
				{Column: "record_label_id", RefTable: "testapp_recordlabel", RefColumn: "id"},
				{Column: "artist_id", RefTable: "testapp_artist", RefColumn: "id"},
			},
		},
		{
			Name:        "testapp_song",
			Columns:     []string{"id", "album_id", "name", "release_date"},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []ForeignKey{{Column: "album_id", RefTable: "testapp_album", RefColumn: "id"}},
		},
		{
			Name:       "testapp_song_artists",
			Columns:    []string{"id", "song_id", "artist_id"},
			PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{
				{Column: "song_id", RefTable: "testapp_song", RefColumn: "id"},
				{Column: "artist_id", RefTable: "testapp_artist", RefColumn: "id"},
			},
		},
	}
}

func testLogger(t *testing.T) *logger.Logger {
	return logger.FromZap(zaptest.NewLogger(t))
}

func TestConvert_MusicSchema(t *testing.T) {
	reg, err := Convert(musicTables(), "testapp", testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Len(), "junction table is not a model")

	album, err := reg.Resolve(schema.NewLogicalType("testapp", "album"))
	require.NoError(t, err)
	assert.Equal(t, "testapp_album", album.Table)
	assert.Equal(t, "id", album.PrimaryKey)
	assert.Equal(t, []string{"id", "name", "release_date"}, album.Fields)
	require.Len(t, album.ForeignKeys, 2)
	assert.Equal(t, schema.ForeignKey{Attribute: "artist", Column: "artist_id", Target: schema.NewLogicalType("testapp", "artist")}, album.ForeignKeys[0])
	assert.Equal(t, "record_label", album.ForeignKeys[1].Attribute)

	song, err := reg.Resolve(schema.NewLogicalType("testapp", "song"))
	require.NoError(t, err)
	require.Len(t, song.ManyToMany, 1)
	assert.Equal(t, schema.ManyToMany{
		Attribute:    "artists",
		Target:       schema.NewLogicalType("testapp", "artist"),
		Through:      "testapp_song_artists",
		SourceColumn: "song_id",
		TargetColumn: "artist_id",
	}, song.ManyToMany[0])

	// Song.artists shows up as a target relation on artist
	r := schema.NewReflector(reg)
	target, err := r.ListTargetRelations(schema.NewLogicalType("testapp", "artist"))
	require.NoError(t, err)
	var attrs []string
	for _, f := range target {
		attrs = append(attrs, f.Owner.Model+"."+f.Attribute)
	}
	assert.Equal(t, []string{"album.artist", "song.artists"}, attrs)
}

func TestConvert_SkipsCompositeKeysAndDanglingRelations(t *testing.T) {
	tables := []*Table{
		{Name: "shop_order", Columns: []string{"id", "customer_id"}, PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{{Column: "customer_id", RefTable: "shop_customer", RefColumn: "id"}}},
		{Name: "shop_line", Columns: []string{"order_id", "line_no", "qty"}, PrimaryKey: []string{"order_id", "line_no"},
			ForeignKeys: []ForeignKey{{Column: "order_id", RefTable: "shop_order", RefColumn: "id"}}},
	}

	reg, err := Convert(tables, "shop", testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	order, err := reg.Resolve(schema.NewLogicalType("shop", "order"))
	require.NoError(t, err)
	assert.Empty(t, order.ForeignKeys, "customer table was not selected")
	assert.Equal(t, []string{"id", "customer_id"}, order.Fields, "dropped FK column stays a scalar")
}

func TestConvert_SkipsReservedColumnName(t *testing.T) {
	tables := append(musicTables(),
		&Table{Name: "testapp_tag", Columns: []string{"id", "pk", "label"}, PrimaryKey: []string{"id"}},
		&Table{Name: "testapp_legacy", Columns: []string{"pk", "name"}, PrimaryKey: []string{"pk"}},
		&Table{Name: "testapp_note", Columns: []string{"id", "pk"}, PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{{Column: "pk", RefTable: "testapp_album", RefColumn: "id"}}},
	)

	reg, err := Convert(tables, "testapp", testLogger(t))
	require.NoError(t, err, "one awkward table does not abort the whole database")

	tag, err := reg.Resolve(schema.NewLogicalType("testapp", "tag"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "label"}, tag.Fields)

	note, err := reg.Resolve(schema.NewLogicalType("testapp", "note"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, note.Fields)
	assert.Empty(t, note.ForeignKeys)

	assert.False(t, reg.Has(schema.NewLogicalType("testapp", "legacy")))
	assert.True(t, reg.Has(schema.NewLogicalType("testapp", "album")))
}

func TestConvert_RequiresAppLabel(t *testing.T) {
	_, err := Convert(musicTables(), "", nil)
	assert.Error(t, err)
}

func TestIsJunction(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		want  bool
	}{
		{"surrogate key", Table{Columns: []string{"id", "a_id", "b_id"}, PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{{Column: "a_id"}, {Column: "b_id"}}}, true},
		{"composite key", Table{Columns: []string{"a_id", "b_id"}, PrimaryKey: []string{"a_id", "b_id"},
			ForeignKeys: []ForeignKey{{Column: "a_id"}, {Column: "b_id"}}}, true},
		{"extra payload", Table{Columns: []string{"id", "a_id", "b_id", "joined_at"}, PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{{Column: "a_id"}, {Column: "b_id"}}}, false},
		{"one fk", Table{Columns: []string{"id", "a_id"}, PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{{Column: "a_id"}}}, false},
		{"same column twice", Table{Columns: []string{"id", "a_id"}, PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{{Column: "a_id"}, {Column: "a_id"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := tt.table
			assert.Equal(t, tt.want, isJunction(&tbl))
		})
	}
}

func TestAttributeName(t *testing.T) {
	assert.Equal(t, "artist", attributeName("artist_id", []string{"id", "artist_id"}))
	assert.Equal(t, "owner", attributeName("owner", []string{"id", "owner"}))
	assert.Equal(t, "parent_id", attributeName("parent_id", []string{"id", "parent", "parent_id"}))
	assert.Equal(t, "pk_id", attributeName("pk_id", []string{"pk_id"}))
}

func TestMySQL_Describe(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT table_name\\s+FROM information_schema.tables").
		WithArgs("music").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("testapp_album"))
	mock.ExpectQuery("SELECT column_name\\s+FROM information_schema.columns").
		WithArgs("music", "testapp_album").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id").AddRow("artist_id").AddRow("name"))
	mock.ExpectQuery("constraint_name = 'PRIMARY'").
		WithArgs("music", "testapp_album").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))
	mock.ExpectQuery("referenced_table_name IS NOT NULL").
		WithArgs("music", "testapp_album").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "referenced_table_name", "referenced_column_name"}).
			AddRow("artist_id", "testapp_artist", "id"))

	tables, err := Inspect(context.Background(), NewMySQL(db, "music"), nil)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, &Table{
		Name:        "testapp_album",
		Columns:     []string{"id", "artist_id", "name"},
		PrimaryKey:  []string{"id"},
		ForeignKeys: []ForeignKey{{Column: "artist_id", RefTable: "testapp_artist", RefColumn: "id"}},
	}, tables[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Describe(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("public", "testapp_song").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id").AddRow("album_id"))
	mock.ExpectQuery("constraint_type = 'PRIMARY KEY'").
		WithArgs("public", "testapp_song").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))
	mock.ExpectQuery("constraint_type = 'FOREIGN KEY'").
		WithArgs("public", "testapp_song").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "foreign_table_name", "foreign_column_name"}).
			AddRow("album_id", "testapp_album", "id"))

	src := NewPostgres(db, "")
	tbl, err := src.Describe(context.Background(), "testapp_song")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "album_id"}, tbl.Columns)
	assert.Equal(t, "testapp_album", tbl.ForeignKeys[0].RefTable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspect_MissingTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
	mock.ExpectQuery("constraint_name = 'PRIMARY'").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
	mock.ExpectQuery("referenced_table_name").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c"}))

	_, err = Inspect(context.Background(), NewMySQL(db, "music"), []string{"nope"})
	assert.ErrorContains(t, err, "not found")
}

func TestSQLite_BuildRegistry(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "music.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	defer db.Close()

	ddl := []string{
		`CREATE TABLE testapp_artist (id INTEGER PRIMARY KEY, first_name TEXT NOT NULL, last_name TEXT NOT NULL, instrument TEXT)`,
		`CREATE TABLE testapp_recordlabel (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE testapp_album (id INTEGER PRIMARY KEY, artist_id INTEGER NOT NULL REFERENCES testapp_artist(id),
			name TEXT NOT NULL, release_date DATE NOT NULL, record_label_id INTEGER NOT NULL REFERENCES testapp_recordlabel(id))`,
		`CREATE TABLE testapp_song (id INTEGER PRIMARY KEY, album_id INTEGER NOT NULL REFERENCES testapp_album(id),
			name TEXT NOT NULL, release_date DATE NOT NULL)`,
		`CREATE TABLE testapp_song_artists (id INTEGER PRIMARY KEY, song_id INTEGER NOT NULL REFERENCES testapp_song(id),
			artist_id INTEGER NOT NULL REFERENCES testapp_artist(id))`,
	}
	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	src, err := NewSource(sqlutil.SQLite, db, "")
	require.NoError(t, err)

	reg, err := BuildRegistry(context.Background(), src, Options{AppLabel: "testapp"}, testLogger(t))
	require.NoError(t, err)

	expected, err := Convert(musicTables(), "testapp", nil)
	require.NoError(t, err)

	for _, m := range expected.Models() {
		got, err := reg.Resolve(m.Type)
		require.NoError(t, err)
		assert.Equal(t, m, got, m.Type.String())
	}
	assert.Equal(t, expected.Len(), reg.Len())
}

func TestNewSource_Unsupported(t *testing.T) {
	_, err := NewSource(sqlutil.Dialect("oracle"), nil, "")
	assert.Error(t, err)
}
