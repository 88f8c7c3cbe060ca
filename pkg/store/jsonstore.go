package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// JSONStore keeps one JSON file per unit under
// <unitsDir>/<faction-slug>/<unit-id>.json and every faction record in a
// single JSON object file keyed by faction slug.
type JSONStore struct {
	mu           sync.Mutex
	unitsDir     string
	factionsPath string

	// unitPaths remembers which file each loaded unit came from, so a unit
	// whose file name differs from its id is written back in place.
	unitPaths map[string]string
}

// NewJSONStore creates a store over an existing directory layout.
func NewJSONStore(unitsDir, factionsPath string) *JSONStore {
	return &JSONStore{
		unitsDir:     unitsDir,
		factionsPath: factionsPath,
		unitPaths:    make(map[string]string),
	}
}

var _ RecordStore = (*JSONStore)(nil)

// FactionSlugs lists factions present in the factions file or as unit
// directories.
func (s *JSONStore) FactionSlugs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)

	factions, _, err := s.readFactions()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for slug := range factions {
		seen[slug] = true
	}

	entries, err := os.ReadDir(s.unitsDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to list units directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			seen[entry.Name()] = true
		}
	}

	slugs := make([]string, 0, len(seen))
	for slug := range seen {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Units loads every *.json file in the faction's unit directory, sorted by
// file name.
func (s *JSONStore) Units(ctx context.Context, factionSlug string) ([]*Unit, []*RecordError, error) {
	factionDir := filepath.Join(s.unitsDir, factionSlug)
	info, err := os.Stat(factionDir)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s (directory %s)", ErrUnitsNotFound, factionSlug, factionDir)
	}

	paths, err := filepath.Glob(filepath.Join(factionDir, "*.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list unit files: %w", err)
	}
	sort.Strings(paths)

	var units []*Unit
	var recordErrors []*RecordError
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		unit, err := readUnitFile(path)
		if err != nil {
			recordErrors = append(recordErrors, &RecordError{Path: path, Err: err})
			continue
		}
		units = append(units, unit)

		s.mu.Lock()
		s.unitPaths[unitKey(factionSlug, unit.ID)] = path
		s.mu.Unlock()
	}

	return units, recordErrors, nil
}

func readUnitFile(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	unit := &Unit{}
	if err := json.Unmarshal(data, unit); err != nil {
		return nil, err
	}
	if unit.ID == "" {
		unit.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return unit, nil
}

// SaveUnit writes the unit back to the file it was loaded from, or to
// <unit-id>.json for a unit the store has not seen.
func (s *JSONStore) SaveUnit(ctx context.Context, factionSlug string, unit *Unit) error {
	if unit == nil || unit.ID == "" {
		return fmt.Errorf("unit id is required")
	}

	s.mu.Lock()
	path, known := s.unitPaths[unitKey(factionSlug, unit.ID)]
	s.mu.Unlock()
	if !known {
		path = filepath.Join(s.unitsDir, factionSlug, unit.ID+".json")
	}

	data, err := encodeRecord(unit)
	if err != nil {
		return fmt.Errorf("failed to encode unit %s: %w", unit.ID, err)
	}
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write unit %s: %w", path, err)
	}
	return nil
}

// Faction loads one faction record from the factions file.
func (s *JSONStore) Faction(ctx context.Context, factionSlug string) (*Faction, error) {
	factions, _, err := s.readFactions()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (no factions file at %s)", ErrFactionNotFound, factionSlug, s.factionsPath)
		}
		return nil, err
	}

	raw, ok := factions[factionSlug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFactionNotFound, factionSlug)
	}

	faction := &Faction{}
	if err := json.Unmarshal(raw, faction); err != nil {
		return nil, &RecordError{Path: s.factionsPath + "#" + factionSlug, Err: err}
	}
	faction.Slug = factionSlug
	return faction, nil
}

// SaveFaction rewrites the factions file with the given record replacing
// the existing entry. Other factions are written back unchanged and every
// faction keeps its position in the file.
func (s *JSONStore) SaveFaction(ctx context.Context, faction *Faction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	factions, order, err := s.readFactions()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFactionNotFound, faction.Slug)
		}
		return err
	}
	if _, ok := factions[faction.Slug]; !ok {
		return fmt.Errorf("%w: %s", ErrFactionNotFound, faction.Slug)
	}

	raw, err := json.Marshal(faction)
	if err != nil {
		return fmt.Errorf("failed to encode faction %s: %w", faction.Slug, err)
	}
	factions[faction.Slug] = raw

	object, err := encodeFields(factions, order)
	if err != nil {
		return fmt.Errorf("failed to encode factions file: %w", err)
	}
	data, err := encodeRecord(json.RawMessage(object))
	if err != nil {
		return fmt.Errorf("failed to encode factions file: %w", err)
	}
	if err := writeFileAtomic(s.factionsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write factions file: %w", err)
	}
	return nil
}

// Close is a no-op; the JSON store holds no open handles.
func (s *JSONStore) Close() error {
	return nil
}

// readFactions returns the factions file's entries by slug and the order
// the slugs appear in.
func (s *JSONStore) readFactions() (map[string]json.RawMessage, []string, error) {
	data, err := os.ReadFile(s.factionsPath)
	if err != nil {
		return nil, nil, err
	}
	if !json.Valid(data) {
		return nil, nil, &RecordError{Path: s.factionsPath, Err: fmt.Errorf("invalid JSON")}
	}
	if string(bytes.TrimSpace(data)) == "null" {
		return make(map[string]json.RawMessage), nil, nil
	}
	factions, order, err := splitFields(data)
	if err != nil {
		return nil, nil, &RecordError{Path: s.factionsPath, Err: err}
	}
	return factions, order, nil
}

func unitKey(factionSlug, unitID string) string {
	return factionSlug + "/" + unitID
}
