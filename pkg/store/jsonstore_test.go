package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFixtureStore lays out a small record store on disk.
func newFixtureStore(t *testing.T) (*JSONStore, string) {
	t.Helper()
	root := t.TempDir()
	unitsDir := filepath.Join(root, "units")
	factionsPath := filepath.Join(root, "factions.json")

	writeFixture(t, filepath.Join(unitsDir, "flesh-eater-courts", "crypt-flayers.json"), cryptFlayersRecord)
	writeFixture(t, filepath.Join(unitsDir, "flesh-eater-courts", "ushoran.json"), `{"id": "ushoran", "name": "Ushoran"}`)
	writeFixture(t, filepath.Join(unitsDir, "flesh-eater-courts", "broken.json"), `{"id": `)
	writeFixture(t, filepath.Join(unitsDir, "flesh-eater-courts", "notes.txt"), `not a record`)
	writeFixture(t, factionsPath, `{
  "flesh-eater-courts": {"id": "flesh-eater-courts", "name": "Flesh-eater Courts", "grandAlliance": "DEATH"},
  "nighthaunt": {"id": "nighthaunt", "name": "Nighthaunt", "grandAlliance": "DEATH"}
}`)

	return NewJSONStore(unitsDir, factionsPath), root
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestJSONStore_UnitsSkipsMalformedRecords(t *testing.T) {
	store, root := newFixtureStore(t)

	units, recordErrors, err := store.Units(context.Background(), "flesh-eater-courts")
	require.NoError(t, err)

	require.Len(t, units, 2)
	assert.Equal(t, "crypt-flayers", units[0].ID)
	assert.Equal(t, "ushoran", units[1].ID)

	require.Len(t, recordErrors, 1)
	assert.Equal(t, filepath.Join(root, "units", "flesh-eater-courts", "broken.json"), recordErrors[0].Path)
	assert.True(t, errors.Is(recordErrors[0], ErrMalformedRecord))
}

func TestJSONStore_UnitsMissingDirectory(t *testing.T) {
	store, _ := newFixtureStore(t)

	_, _, err := store.Units(context.Background(), "seraphon")
	assert.ErrorIs(t, err, ErrUnitsNotFound)
}

func TestJSONStore_SaveUnitWritesBackInPlace(t *testing.T) {
	store, root := newFixtureStore(t)
	ctx := context.Background()

	writeFixture(t, filepath.Join(root, "units", "flesh-eater-courts", "legacy-name.json"),
		`{"id": "crypt-ghouls", "name": "Crypt Ghouls", "battleProfile": {"unitSize": 20, "points": 150}}`)

	units, _, err := store.Units(ctx, "flesh-eater-courts")
	require.NoError(t, err)

	var ghouls *Unit
	for _, unit := range units {
		if unit.ID == "crypt-ghouls" {
			ghouls = unit
		}
	}
	require.NotNil(t, ghouls)

	ghouls.BattleProfile.Points = 160
	require.NoError(t, store.SaveUnit(ctx, "flesh-eater-courts", ghouls))

	data, err := os.ReadFile(filepath.Join(root, "units", "flesh-eater-courts", "legacy-name.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"points": 160`)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	_, err = os.Stat(filepath.Join(root, "units", "flesh-eater-courts", "crypt-ghouls.json"))
	assert.True(t, os.IsNotExist(err), "unit should not be duplicated under its id")
}

func TestJSONStore_SaveUnitNewRecord(t *testing.T) {
	store, root := newFixtureStore(t)

	err := store.SaveUnit(context.Background(), "nighthaunt", &Unit{ID: "chainrasps", Name: "Chainrasps"})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "units", "nighthaunt", "chainrasps.json"))
	assert.NoError(t, err)

	assert.Error(t, store.SaveUnit(context.Background(), "nighthaunt", &Unit{}))
}

func TestJSONStore_FactionRoundTrip(t *testing.T) {
	store, root := newFixtureStore(t)
	ctx := context.Background()

	faction, err := store.Faction(ctx, "flesh-eater-courts")
	require.NoError(t, err)
	assert.Equal(t, "flesh-eater-courts", faction.Slug)
	assert.Equal(t, "Flesh-eater Courts", faction.Name)

	faction.BattleFormations = []Formation{{ID: "knightly-echelon", Name: "Knightly Echelon", Description: "From Battletome: Flesh-eater Courts"}}
	require.NoError(t, store.SaveFaction(ctx, faction))

	reloaded, err := store.Faction(ctx, "flesh-eater-courts")
	require.NoError(t, err)
	assert.Equal(t, faction.BattleFormations, reloaded.BattleFormations)

	data, err := os.ReadFile(filepath.Join(root, "factions.json"))
	require.NoError(t, err)
	var all map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &all))
	assert.Equal(t, "DEATH", all["flesh-eater-courts"]["grandAlliance"])
	assert.Equal(t, "Nighthaunt", all["nighthaunt"]["name"])
}

func TestJSONStore_MissingFactionEntry(t *testing.T) {
	store, _ := newFixtureStore(t)
	ctx := context.Background()

	_, err := store.Faction(ctx, "seraphon")
	assert.ErrorIs(t, err, ErrFactionNotFound)

	err = store.SaveFaction(ctx, &Faction{Slug: "seraphon"})
	assert.ErrorIs(t, err, ErrFactionNotFound)
}

func TestJSONStore_MissingFactionsFile(t *testing.T) {
	store := NewJSONStore(t.TempDir(), filepath.Join(t.TempDir(), "factions.json"))

	_, err := store.Faction(context.Background(), "flesh-eater-courts")
	assert.ErrorIs(t, err, ErrFactionNotFound)
}

func TestJSONStore_FactionSlugs(t *testing.T) {
	store, _ := newFixtureStore(t)

	slugs, err := store.FactionSlugs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"flesh-eater-courts", "nighthaunt"}, slugs)
}

func TestJSONStore_SaveKeepsRecordLayout(t *testing.T) {
	root := t.TempDir()
	unitsDir := filepath.Join(root, "units")
	factionsPath := filepath.Join(root, "factions.json")
	writeFixture(t, filepath.Join(unitsDir, "seraphon", "saurus-warriors.json"), `{
  "name": "Saurus Warriors",
  "id": "saurus-warriors",
  "battleProfile": {
    "unitSize": "10",
    "points": 100
  }
}
`)
	writeFixture(t, factionsPath, `{
  "seraphon": {"name": "Seraphon", "id": "seraphon"},
  "nighthaunt": {"name": "Nighthaunt", "id": "nighthaunt"}
}
`)
	store := NewJSONStore(unitsDir, factionsPath)
	ctx := context.Background()

	units, _, err := store.Units(ctx, "seraphon")
	require.NoError(t, err)
	require.Len(t, units, 1)
	units[0].BattleProfile.Points = 110
	require.NoError(t, store.SaveUnit(ctx, "seraphon", units[0]))

	data, err := os.ReadFile(filepath.Join(unitsDir, "seraphon", "saurus-warriors.json"))
	require.NoError(t, err)
	assert.Equal(t, `{
  "name": "Saurus Warriors",
  "id": "saurus-warriors",
  "battleProfile": {
    "unitSize": "10",
    "points": 110
  }
}
`, string(data))

	faction, err := store.Faction(ctx, "seraphon")
	require.NoError(t, err)
	faction.BattleFormations = []Formation{}
	require.NoError(t, store.SaveFaction(ctx, faction))

	data, err = os.ReadFile(factionsPath)
	require.NoError(t, err)
	assert.Equal(t, `{
  "seraphon": {
    "name": "Seraphon",
    "id": "seraphon",
    "battleFormations": []
  },
  "nighthaunt": {
    "name": "Nighthaunt",
    "id": "nighthaunt"
  }
}
`, string(data))
}
