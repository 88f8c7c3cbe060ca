package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps unit and faction records as JSON documents in a SQLite
// database, keyed the same way as the JSON directory layout.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

var _ RecordStore = (*SQLiteStore)(nil)

// OpenSQLiteStore creates or opens a record database at dbPath.
func OpenSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, dbPath: dbPath}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS factions (
		slug TEXT PRIMARY KEY,
		record TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS units (
		faction_slug TEXT NOT NULL,
		unit_id TEXT NOT NULL,
		record TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (faction_slug, unit_id)
	);
	CREATE INDEX IF NOT EXISTS idx_units_faction ON units(faction_slug);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// FactionSlugs lists factions with a faction record or at least one unit.
func (s *SQLiteStore) FactionSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slug FROM factions
		UNION
		SELECT DISTINCT faction_slug FROM units
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list factions: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// Units loads every unit record of a faction ordered by unit id.
func (s *SQLiteStore) Units(ctx context.Context, factionSlug string) ([]*Unit, []*RecordError, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, record FROM units WHERE faction_slug = ? ORDER BY unit_id`, factionSlug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []*Unit
	var recordErrors []*RecordError
	found := false
	for rows.Next() {
		found = true
		var unitID, record string
		if err := rows.Scan(&unitID, &record); err != nil {
			return nil, nil, err
		}

		unit := &Unit{}
		if err := json.Unmarshal([]byte(record), unit); err != nil {
			recordErrors = append(recordErrors, &RecordError{Path: unitTableKey(factionSlug, unitID), Err: err})
			continue
		}
		if unit.ID == "" {
			unit.ID = unitID
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnitsNotFound, factionSlug)
	}
	return units, recordErrors, nil
}

// SaveUnit inserts or replaces a unit record.
func (s *SQLiteStore) SaveUnit(ctx context.Context, factionSlug string, unit *Unit) error {
	if unit == nil || unit.ID == "" {
		return fmt.Errorf("unit id is required")
	}
	record, err := json.Marshal(unit)
	if err != nil {
		return fmt.Errorf("failed to encode unit %s: %w", unit.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO units (faction_slug, unit_id, record, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(faction_slug, unit_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		factionSlug, unit.ID, string(record), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save unit %s: %w", unitTableKey(factionSlug, unit.ID), err)
	}
	return nil
}

// Faction loads a faction record.
func (s *SQLiteStore) Faction(ctx context.Context, factionSlug string) (*Faction, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM factions WHERE slug = ?`, factionSlug).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrFactionNotFound, factionSlug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query faction: %w", err)
	}

	faction := &Faction{}
	if err := json.Unmarshal([]byte(record), faction); err != nil {
		return nil, &RecordError{Path: "factions/" + factionSlug, Err: err}
	}
	faction.Slug = factionSlug
	return faction, nil
}

// SaveFaction replaces an existing faction record.
func (s *SQLiteStore) SaveFaction(ctx context.Context, faction *Faction) error {
	record, err := json.Marshal(faction)
	if err != nil {
		return fmt.Errorf("failed to encode faction %s: %w", faction.Slug, err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE factions SET record = ?, updated_at = ? WHERE slug = ?`,
		string(record), time.Now().UTC(), faction.Slug)
	if err != nil {
		return fmt.Errorf("failed to save faction %s: %w", faction.Slug, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrFactionNotFound, faction.Slug)
	}
	return nil
}

// CreateFaction inserts or replaces a faction record.
func (s *SQLiteStore) CreateFaction(ctx context.Context, faction *Faction) error {
	if faction == nil || faction.Slug == "" {
		return fmt.Errorf("faction slug is required")
	}
	record, err := json.Marshal(faction)
	if err != nil {
		return fmt.Errorf("failed to encode faction %s: %w", faction.Slug, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO factions (slug, record, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		faction.Slug, string(record), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create faction %s: %w", faction.Slug, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unitTableKey(factionSlug, unitID string) string {
	return "units/" + factionSlug + "/" + unitID
}
