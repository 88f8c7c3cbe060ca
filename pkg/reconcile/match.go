// Package reconcile applies extracted point values and battle formations
// onto records from the record store without discarding unrelated data.
package reconcile

import (
	"strings"

	"github.com/coolbeans/profilesync/pkg/extract"
	"github.com/coolbeans/profilesync/pkg/store"
)

// MatchKind records which rule paired a stored unit with an extracted name.
type MatchKind string

const (
	// MatchNone means no extracted name corresponds to the stored unit.
	MatchNone MatchKind = ""

	// MatchAlias means an explicit alias table entry named the extracted row.
	MatchAlias MatchKind = "alias"

	// MatchExact means the names are equal ignoring case.
	MatchExact MatchKind = "exact"

	// MatchSubstring means one name contains the other, ignoring case.
	MatchSubstring MatchKind = "substring"
)

// Match is the extracted row chosen for a stored unit.
type Match struct {
	Name   string    `json:"name"`
	Points int       `json:"points"`
	Kind   MatchKind `json:"kind"`
}

// Matcher pairs stored units with extracted names. Rules are tried in
// priority order: alias, exact (case-insensitive), then substring in
// either direction. Within a rule, the first extracted name in document
// order wins; candidates are not scored.
//
// An extracted name that is claimed by some stored unit through the alias
// or exact rule is never handed to another unit through the substring
// rule, so "Knight" cannot take the row printed for "Knight Azyros" when
// "Knight Azyros" is itself stored.
type Matcher struct {
	// Aliases maps a stored unit id to the extracted name it should take
	// its points from.
	Aliases map[string]string

	// SubstringMatching enables the substring rule.
	SubstringMatching bool
}

// Reserve returns the extracted names claimed by units through the alias
// or exact rule.
func (m Matcher) Reserve(units []*store.Unit, table *extract.PointTable) map[string]bool {
	reserved := make(map[string]bool)
	for _, unit := range units {
		if match, ok := m.findStrict(unit, table); ok {
			reserved[match.Name] = true
		}
	}
	return reserved
}

// Find returns the extracted row for unit, if any. Names in reserved are
// skipped by the substring rule.
func (m Matcher) Find(unit *store.Unit, table *extract.PointTable, reserved map[string]bool) (Match, bool) {
	if match, ok := m.findStrict(unit, table); ok {
		return match, true
	}
	if !m.SubstringMatching || unit == nil || table == nil {
		return Match{}, false
	}

	storedName := strings.TrimSpace(unit.Name)
	if storedName == "" {
		return Match{}, false
	}

	lowerStored := strings.ToLower(storedName)
	for extractedName, points := range table.All() {
		if reserved[extractedName] {
			continue
		}
		lowerExtracted := strings.ToLower(extractedName)
		if strings.Contains(lowerExtracted, lowerStored) || strings.Contains(lowerStored, lowerExtracted) {
			return Match{Name: extractedName, Points: points, Kind: MatchSubstring}, true
		}
	}

	return Match{}, false
}

// findStrict applies the alias and exact rules.
func (m Matcher) findStrict(unit *store.Unit, table *extract.PointTable) (Match, bool) {
	if unit == nil || table == nil {
		return Match{}, false
	}

	if alias, ok := m.Aliases[unit.ID]; ok {
		if points, found := table.Get(alias); found {
			return Match{Name: alias, Points: points, Kind: MatchAlias}, true
		}
	}

	storedName := strings.TrimSpace(unit.Name)
	if storedName == "" {
		return Match{}, false
	}

	for extractedName, points := range table.All() {
		if strings.EqualFold(extractedName, storedName) {
			return Match{Name: extractedName, Points: points, Kind: MatchExact}, true
		}
	}
	return Match{}, false
}
