package extract

import (
	"iter"
	"regexp"
	"strconv"
	"strings"
)

// formationPattern matches battle formation rows such as:
//
//	✹ Battle Formation Knightly Echelon 0 Battletome: Flesh-eater Courts
//	✹ Battle Formation Veteran Cannoneers 30 (+30) Scourge of Ghyran
//
// Groups: name, point cost, source label.
var formationPattern = regexp.MustCompile(
	`^[✹\s]*Battle Formation\s+(\p{L}[\p{L}\s\-'’]*?)\s+(\d+)(?:\s+\([+-]\d+\))?\s+(.+)$`,
)

// FormationRecord is one battle formation extracted from a document span.
type FormationRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Source      string `json:"source"`
	// Index is the position of the source line within the scanned lines.
	Index int `json:"index"`
}

// ParseFormationLine extracts a battle formation row from a single line.
func ParseFormationLine(line string) (FormationRecord, bool) {
	match := formationPattern.FindStringSubmatch(line)
	if match == nil {
		return FormationRecord{}, false
	}

	points, err := strconv.Atoi(match[2])
	if err != nil {
		return FormationRecord{}, false
	}

	name := strings.TrimSpace(match[1])
	source := strings.TrimSpace(match[3])

	return FormationRecord{
		ID:          Slugify(name),
		Name:        name,
		Description: "From " + source,
		Points:      points,
		Source:      source,
	}, true
}

// Formations yields battle formation rows from lines in document order.
// Duplicate names are not collapsed.
func Formations(lines []string) iter.Seq[FormationRecord] {
	return func(yield func(FormationRecord) bool) {
		for lineIndex, line := range lines {
			record, ok := ParseFormationLine(line)
			if !ok {
				continue
			}
			record.Index = lineIndex
			if !yield(record) {
				return
			}
		}
	}
}

// ExtractFormations collects every battle formation row in lines.
func ExtractFormations(lines []string) []FormationRecord {
	var formations []FormationRecord
	for record := range Formations(lines) {
		formations = append(formations, record)
	}
	return formations
}

// Slugify derives a stable id from a display name: lowercase, spaces
// become hyphens, apostrophes are dropped.
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "'", "")
	slug = strings.ReplaceAll(slug, "’", "")
	return slug
}
