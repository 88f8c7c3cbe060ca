package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/profilesync/pkg/store"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, BackendJSON, cfg.Store.Backend)
	assert.True(t, cfg.Reconcile.SubstringMatching)
	assert.Equal(t, 30, cfg.Vocabulary.MaxTitleLength)
	assert.Equal(t, 5, cfg.Vocabulary.HeaderLookback)
	require.Len(t, cfg.Jobs, 4)
	assert.True(t, cfg.Jobs[0].WholeDocument())
	assert.Equal(t, "flesh-eater-courts", cfg.Jobs[0].FactionSlug)
	assert.Equal(t, "OSSIARCH BONEREAPERS", cfg.Jobs[1].Title())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Paths, cfg.Paths)
}

func TestLoad_ParsesJobsAndAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profilesync.yaml")
	content := `
paths:
  data_dir: /srv/data
  documents_dir: /srv/docs
store:
  backend: sqlite
reconcile:
  substring_matching: false
  aliases:
    stormcast-eternals:
      knight-azyros: Knight-Azyros
jobs:
  - faction: nighthaunt
    document: nighthaunt.txt
    title: null
  - faction: seraphon
    document: Battle Profiles.txt
    title: SERAPHON
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.False(t, cfg.Reconcile.SubstringMatching)
	assert.Equal(t, map[string]string{"knight-azyros": "Knight-Azyros"}, cfg.Reconcile.AliasesFor("stormcast-eternals"))
	assert.Nil(t, cfg.Reconcile.AliasesFor("nighthaunt"))

	require.Len(t, cfg.Jobs, 2)
	assert.True(t, cfg.Jobs[0].WholeDocument())
	assert.Equal(t, "SERAPHON", cfg.Jobs[1].Title())

	assert.Equal(t, "/srv/data/units", cfg.UnitsDir())
	assert.Equal(t, "/srv/data/factions.json", cfg.FactionsPath())
	assert.Equal(t, "/srv/docs/nighthaunt.txt", cfg.DocumentPath("nighthaunt.txt"))
	assert.Equal(t, "/abs/doc.txt", cfg.DocumentPath("/abs/doc.txt"))
}

func TestLoad_RejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "paths: [unclosed"},
		{"unknown backend", "store:\n  backend: postgres\n"},
		{"job without faction", "jobs:\n  - document: a.txt\n"},
		{"job without document", "jobs:\n  - faction: nighthaunt\n"},
		{"job with empty title", "jobs:\n  - faction: nighthaunt\n    document: a.txt\n    title: \"\"\n"},
		{"job with blank title", "jobs:\n  - faction: nighthaunt\n    document: a.txt\n    title: \"   \"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROFILESYNC_DATA_DIR", "/env/data")
	t.Setenv("PROFILESYNC_DOCS_DIR", "/env/docs")
	t.Setenv("PROFILESYNC_STORE", "SQLite")
	t.Setenv("PROFILESYNC_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/env/data", cfg.Paths.DataDir)
	assert.Equal(t, "/env/docs", cfg.Paths.DocumentsDir)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profilesync.yaml")
	cfg := DefaultConfig()
	cfg.Metrics.Textfile = "/var/lib/node_exporter/profilesync.prom"

	require.NoError(t, cfg.Save(path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Metrics, reloaded.Metrics)
	assert.Equal(t, cfg.Jobs, reloaded.Jobs)
	assert.Equal(t, cfg.Vocabulary, reloaded.Vocabulary)
}

func TestDefaultProfileConfig_BattleProfile(t *testing.T) {
	profile := DefaultConfig().Reconcile.DefaultProfile.BattleProfile()
	assert.Equal(t, store.UnitSize("1"), profile.UnitSize)
	assert.Equal(t, "40mm", profile.BaseSize)
	assert.Equal(t, 0, profile.Points)
}
