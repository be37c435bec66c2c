package cmd

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/schema/schematest"
)

// testEnv is a config file pointing at a seeded SQLite source, an empty
// SQLite destination and a music models file.
type testEnv struct {
	Dir        string
	ConfigPath string
	SourcePath string
	DestPath   string
	OutputDir  string
	ModelsPath string
	Output     *bytes.Buffer
}

var seedMusic = []string{
	`INSERT INTO testapp_artist VALUES (1, 'Miles', 'Davis', 'trumpet')`,
	`INSERT INTO testapp_artist VALUES (2, 'Bill', 'Evans', 'piano')`,
	`INSERT INTO testapp_recordlabel VALUES (1, 'Columbia')`,
	`INSERT INTO testapp_album VALUES (1, 'Kind of Blue', '1959-08-17', 1, 1)`,
	`INSERT INTO testapp_song VALUES (1, 'So What', '1959-08-17', 1)`,
	`INSERT INTO testapp_song_artists VALUES (1, 1, 1)`,
	`INSERT INTO testapp_song_artists VALUES (2, 1, 2)`,
}

const envConfig = `source:
  driver: sqlite
  path: %s

destination:
  driver: sqlite
  path: %s

schema:
  models_file: %s

extraction:
  output_dir: %s
  indent: 2

verification:
  method: sha256

logging:
  level: error
  format: text
  output: stderr

jobs:
  albums:
    app: testapp
    model: album
  artists_by_name:
    app: testapp
    model: artist
    filter_key: last_name
`

// newTestEnv writes the databases and config, points cfgFile at it and
// captures command output until the test ends.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		Dir:        dir,
		ConfigPath: filepath.Join(dir, "gofixture.yaml"),
		SourcePath: filepath.Join(dir, "source.db"),
		DestPath:   filepath.Join(dir, "dest.db"),
		OutputDir:  filepath.Join(dir, "fixtures"),
		ModelsPath: filepath.Join(dir, "models.yaml"),
		Output:     &bytes.Buffer{},
	}

	execSQLite(t, env.SourcePath, append(append([]string{}, schematest.MusicSQLite...), seedMusic...)...)
	execSQLite(t, env.DestPath, schematest.MusicSQLite...)

	models, err := schema.MarshalModels(schematest.MusicRegistry())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.ModelsPath, models, 0o644))

	cfg := fmt.Sprintf(envConfig, env.SourcePath, env.DestPath, env.ModelsPath, env.OutputDir)
	require.NoError(t, os.WriteFile(env.ConfigPath, []byte(cfg), 0o644))

	originalCfgFile := cfgFile
	cfgFile = env.ConfigPath
	setOutputWriter(env.Output)
	t.Cleanup(func() {
		cfgFile = originalCfgFile
		resetOutputWriter()
	})
	return env
}

func execSQLite(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func countRows(t *testing.T, path, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// withExtractFlags sets the extract flags for one test.
func withExtractFlags(t *testing.T, job, model, filterKey string, dryRun bool) {
	t.Helper()
	extractJob, extractModel, extractFilterKey, extractDryRun = job, model, filterKey, dryRun
	t.Cleanup(func() {
		extractJob, extractModel, extractFilterKey, extractDryRun = "", "", "", false
	})
}
