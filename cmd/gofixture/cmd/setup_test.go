package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofixture/internal/config"
	"github.com/dbsmedya/gofixture/internal/extractor"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/schema/schematest"
)

func TestParseKey(t *testing.T) {
	assert.Equal(t, int64(42), parseKey("42"))
	assert.Equal(t, int64(-1), parseKey("-1"))
	assert.Equal(t, "Evans", parseKey("Evans"))
	assert.Equal(t, "4.5", parseKey("4.5"))
	assert.Equal(t, []interface{}{int64(1), "a"}, parseKeys([]string{"1", "a"}))
}

func TestResolveType(t *testing.T) {
	reg := schematest.MusicRegistry()

	tests := []struct {
		app, model string
		want       schema.LogicalType
		wantErr    bool
	}{
		{"testapp", "Album", schematest.Album, false},
		{"", "testapp.album", schematest.Album, false},
		{"", "song", schematest.Song, false},
		{"", "", schema.LogicalType{}, true},
		{"", "band", schema.LogicalType{}, true},
	}
	for _, tt := range tests {
		got, err := resolveType(reg, tt.app, tt.model)
		if tt.wantErr {
			assert.Error(t, err, "%s/%s", tt.app, tt.model)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestResolvePlan(t *testing.T) {
	dir := t.TempDir()
	schemaFile := filepath.Join(dir, "event.yaml")
	require.NoError(t, os.WriteFile(schemaFile, []byte("Event: {model_name: eventol.Event, filter_key: id}\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Jobs = map[string]config.JobConfig{
		"albums": {App: "testapp", Model: "album", FilterKey: "name",
			Extraction: &config.ExtractionConfig{MaxDepth: 3}},
		"events": {SchemaFile: schemaFile, SplitFiles: true},
	}
	reg := schematest.MusicRegistry()

	plan, extraction, err := resolvePlan(cfg, reg, target{Job: "albums"})
	require.NoError(t, err)
	reflected, ok := plan.(*extractor.ReflectedPlan)
	require.True(t, ok)
	assert.Equal(t, schematest.Album, reflected.Type)
	assert.Equal(t, "name", reflected.FilterKey)
	assert.Equal(t, 3, extraction.MaxDepth)

	plan, _, err = resolvePlan(cfg, reg, target{Job: "events"})
	require.NoError(t, err)
	declared, ok := plan.(*extractor.DeclaredPlan)
	require.True(t, ok)
	assert.True(t, declared.SplitFiles)

	plan, extraction, err = resolvePlan(cfg, reg, target{Model: "artist"})
	require.NoError(t, err)
	assert.Equal(t, "testapp.artist", plan.Name())
	assert.Equal(t, cfg.Extraction, extraction)

	plan, _, err = resolvePlan(cfg, reg, target{SchemaFile: schemaFile})
	require.NoError(t, err)
	assert.IsType(t, &extractor.DeclaredPlan{}, plan)

	_, _, err = resolvePlan(cfg, reg, target{})
	assert.Error(t, err)
	_, _, err = resolvePlan(cfg, reg, target{Job: "missing"})
	assert.Error(t, err)
}
