// Package store provides the keyed record store that reconciliation reads
// from and writes back to: per-faction unit records and faction records.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrFactionNotFound is returned when a faction slug has no faction record.
	ErrFactionNotFound = errors.New("faction not found in record store")

	// ErrUnitsNotFound is returned when a faction slug has no unit records.
	ErrUnitsNotFound = errors.New("no unit records for faction")

	// ErrMalformedRecord marks a stored record that could not be decoded.
	ErrMalformedRecord = errors.New("malformed record")
)

// RecordError describes a single stored record that was skipped while
// loading. Path identifies the record (a file path or a table key).
type RecordError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns ErrMalformedRecord so callers can match with errors.Is.
func (e *RecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// RecordStore is the keyed record store. Reads return fresh copies; the
// caller mutates them and hands them back to the Save methods.
type RecordStore interface {
	// FactionSlugs lists every faction known to the store, sorted.
	FactionSlugs(ctx context.Context) ([]string, error)

	// Units loads every unit record of a faction. Records that cannot be
	// decoded are skipped and reported in the second return value.
	Units(ctx context.Context, factionSlug string) ([]*Unit, []*RecordError, error)

	// SaveUnit writes a unit record back under its faction.
	SaveUnit(ctx context.Context, factionSlug string, unit *Unit) error

	// Faction loads a faction record. Returns ErrFactionNotFound if absent.
	Faction(ctx context.Context, factionSlug string) (*Faction, error)

	// SaveFaction replaces an existing faction record. Returns
	// ErrFactionNotFound if the slug is not already present.
	SaveFaction(ctx context.Context, faction *Faction) error

	// Close releases any resources held by the store.
	Close() error
}

// Copy writes every faction and unit record from source into destination.
// Faction records are inserted into destination with CreateFaction when
// destination supports it. Malformed source records are skipped and returned.
func Copy(ctx context.Context, source RecordStore, destination RecordStore) ([]*RecordError, error) {
	slugs, err := source.FactionSlugs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list factions: %w", err)
	}

	creator, canCreate := destination.(interface {
		CreateFaction(ctx context.Context, faction *Faction) error
	})

	var skipped []*RecordError
	for _, slug := range slugs {
		faction, err := source.Faction(ctx, slug)
		switch {
		case err == nil && canCreate:
			if err := creator.CreateFaction(ctx, faction); err != nil {
				return skipped, fmt.Errorf("failed to copy faction %s: %w", slug, err)
			}
		case err == nil:
			if err := destination.SaveFaction(ctx, faction); err != nil {
				return skipped, fmt.Errorf("failed to copy faction %s: %w", slug, err)
			}
		case !errors.Is(err, ErrFactionNotFound):
			return skipped, fmt.Errorf("failed to read faction %s: %w", slug, err)
		}

		units, recordErrors, err := source.Units(ctx, slug)
		if err != nil && !errors.Is(err, ErrUnitsNotFound) {
			return skipped, fmt.Errorf("failed to read units for %s: %w", slug, err)
		}
		skipped = append(skipped, recordErrors...)

		for _, unit := range units {
			if err := destination.SaveUnit(ctx, slug, unit); err != nil {
				return skipped, fmt.Errorf("failed to copy unit %s/%s: %w", slug, unit.ID, err)
			}
		}
	}

	return skipped, nil
}
