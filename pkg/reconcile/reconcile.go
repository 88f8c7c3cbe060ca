package reconcile

import (
	"github.com/coolbeans/profilesync/pkg/extract"
	"github.com/coolbeans/profilesync/pkg/store"
)

// Options configures a Reconciler.
type Options struct {
	// DefaultProfile is copied into a unit that has no battle profile
	// before its points are set. Nil means store.DefaultBattleProfile.
	DefaultProfile *store.BattleProfile

	// SubstringMatching enables the substring matching rule.
	SubstringMatching bool

	// Aliases maps a stored unit id to an extracted unit name.
	Aliases map[string]string
}

// DefaultOptions returns the options used by the batch pipeline.
func DefaultOptions() Options {
	return Options{SubstringMatching: true}
}

// Change is one entry of the change log: a unit whose stored point value
// differed from the extracted one.
type Change struct {
	Faction     string    `json:"faction" yaml:"faction"`
	UnitID      string    `json:"unit_id" yaml:"unit_id"`
	UnitName    string    `json:"unit_name" yaml:"unit_name"`
	OldPoints   int       `json:"old_points" yaml:"old_points"`
	NewPoints   int       `json:"new_points" yaml:"new_points"`
	MatchedName string    `json:"matched_name" yaml:"matched_name"`
	MatchKind   MatchKind `json:"match_kind" yaml:"match_kind"`
}

// UnitResult is the outcome of reconciling one faction's units.
type UnitResult struct {
	// Units holds every input unit, updated copies in place of matched ones.
	Units []*store.Unit

	// Touched holds the updated copies of every matched unit, whether or
	// not its value changed. These are the records to write back.
	Touched []*store.Unit

	// Changes lists the matched units whose points changed.
	Changes []Change

	// Unmatched lists the ids of units with no extracted counterpart.
	Unmatched []string
}

// Reconciler merges extracted records into stored records.
type Reconciler struct {
	matcher        Matcher
	defaultProfile store.BattleProfile
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	defaultProfile := store.DefaultBattleProfile()
	if opts.DefaultProfile != nil {
		defaultProfile = opts.DefaultProfile
	}
	return &Reconciler{
		matcher: Matcher{
			Aliases:           opts.Aliases,
			SubstringMatching: opts.SubstringMatching,
		},
		defaultProfile: *defaultProfile,
	}
}

// ReconcileUnits sets each stored unit's points from its matching
// extracted row. Unmatched units are returned untouched; input units are
// never modified.
func (r *Reconciler) ReconcileUnits(factionSlug string, units []*store.Unit, table *extract.PointTable) UnitResult {
	result := UnitResult{Units: make([]*store.Unit, 0, len(units))}
	reserved := r.matcher.Reserve(units, table)

	for _, unit := range units {
		match, found := r.matcher.Find(unit, table, reserved)
		if !found {
			result.Units = append(result.Units, unit)
			result.Unmatched = append(result.Unmatched, unit.ID)
			continue
		}

		updated := unit.Clone()
		if updated.BattleProfile == nil {
			profile := r.defaultProfile
			updated.BattleProfile = &profile
		}

		oldPoints := updated.BattleProfile.Points
		updated.BattleProfile.Points = match.Points

		result.Units = append(result.Units, updated)
		result.Touched = append(result.Touched, updated)

		if oldPoints != match.Points {
			result.Changes = append(result.Changes, Change{
				Faction:     factionSlug,
				UnitID:      updated.ID,
				UnitName:    updated.Name,
				OldPoints:   oldPoints,
				NewPoints:   match.Points,
				MatchedName: match.Name,
				MatchKind:   match.Kind,
			})
		}
	}

	return result
}

// ReconcileFormations returns a copy of faction whose formation list is
// replaced wholesale by the extracted formations, in document order.
// Duplicate ids are kept.
func (r *Reconciler) ReconcileFormations(faction *store.Faction, formations []extract.FormationRecord) *store.Faction {
	updated := faction.Clone()
	updated.BattleFormations = make([]store.Formation, 0, len(formations))
	for _, formation := range formations {
		updated.BattleFormations = append(updated.BattleFormations, store.Formation{
			ID:          formation.ID,
			Name:        formation.Name,
			Description: formation.Description,
		})
	}
	return updated
}
