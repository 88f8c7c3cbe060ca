package extract

import (
	"iter"
	"regexp"
	"strconv"
	"strings"
)

var (
	// unitPointPattern matches unit rows such as:
	//
	//	✹ Crypt Flayers 3 150 (+10) Knights, Infantry 50mm
	//	Crypt Ghouls 20 160 Serfs, Infantry 25mm
	//	Crypt Flayers (2 models) 1 75
	//
	// Groups: name, optional model qualifier, model count, points. A
	// parenthesized point delta after the points is matched and ignored.
	unitPointPattern = regexp.MustCompile(
		`^[✹\s]*(\p{L}[\p{L}\s\-'’(),]*?)(?:\s*\((\d+) models?\))?\s+(\d+)\s+(\d+)(?:\s+\([+-]\d+\))?(?:\s|$)`,
	)

	// modelQualifierPattern strips a trailing "(N models)" qualifier.
	modelQualifierPattern = regexp.MustCompile(`\s*\(\d+ models?\)\s*$`)
)

// UnitPointRecord is one unit row extracted from a document span. The
// name is verbatim document text, not a canonical id.
type UnitPointRecord struct {
	Name       string `json:"name"`
	ModelCount int    `json:"model_count"`
	Points     int    `json:"points"`
	// Index is the position of the source line within the scanned lines.
	Index int `json:"index"`
}

// ParseUnitPointLine extracts a unit row from a single line.
func ParseUnitPointLine(line string) (UnitPointRecord, bool) {
	match := unitPointPattern.FindStringSubmatch(line)
	if match == nil {
		return UnitPointRecord{}, false
	}

	modelCount, err := strconv.Atoi(match[3])
	if err != nil {
		return UnitPointRecord{}, false
	}
	points, err := strconv.Atoi(match[4])
	if err != nil {
		return UnitPointRecord{}, false
	}

	return UnitPointRecord{
		Name:       cleanUnitName(match[1]),
		ModelCount: modelCount,
		Points:     points,
	}, true
}

// cleanUnitName trims whitespace and drops any "(N models)" qualifier.
func cleanUnitName(rawName string) string {
	name := strings.TrimSpace(rawName)
	name = modelQualifierPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// UnitPoints yields unit rows from lines in document order. Lines are
// parsed lazily as the sequence is consumed.
func UnitPoints(lines []string) iter.Seq[UnitPointRecord] {
	return func(yield func(UnitPointRecord) bool) {
		for lineIndex, line := range lines {
			record, ok := ParseUnitPointLine(line)
			if !ok || record.Name == "" {
				continue
			}
			record.Index = lineIndex
			if !yield(record) {
				return
			}
		}
	}
}

// ExtractUnitPoints collects every unit row in lines into a PointTable.
// A name seen more than once keeps its first position and takes the
// value of its last occurrence.
func ExtractUnitPoints(lines []string) *PointTable {
	table := NewPointTable()
	for record := range UnitPoints(lines) {
		table.Set(record.Name, record.Points)
	}
	return table
}
