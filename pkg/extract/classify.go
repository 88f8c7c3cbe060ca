package extract

import (
	"strings"
	"unicode/utf8"
)

// LineKind is the classification of a single document line.
type LineKind int

const (
	// LineOrdinary is prose, a banner, or any line with no structural meaning.
	LineOrdinary LineKind = iota

	// LineFactionTitle is a title candidate with no page header context:
	// it may introduce a new faction section.
	LineFactionTitle

	// LinePageHeader is a title candidate that sits at the top of a page,
	// directly after a page banner or page marker.
	LinePageHeader

	// LineData is a unit point row or a battle formation row.
	LineData
)

// String returns a short label for the line kind.
func (k LineKind) String() string {
	switch k {
	case LineFactionTitle:
		return "faction-title"
	case LinePageHeader:
		return "page-header"
	case LineData:
		return "data"
	default:
		return "ordinary"
	}
}

// Classifier categorizes document lines. It holds no state beyond its
// vocabulary and is safe for concurrent use.
type Classifier struct {
	vocabulary Vocabulary
}

// NewClassifier creates a classifier. Empty vocabulary fields fall back
// to DefaultVocabulary.
func NewClassifier(vocabulary Vocabulary) *Classifier {
	return &Classifier{vocabulary: vocabulary.withDefaults()}
}

// Vocabulary returns the effective vocabulary.
func (c *Classifier) Vocabulary() Vocabulary {
	return c.vocabulary
}

// IsTitleCandidate reports whether a line could be a faction title: a
// short all-caps line that is neither a known banner nor a column header.
func (c *Classifier) IsTitleCandidate(line string) bool {
	trimmedLine := strings.TrimSpace(line)

	if !titlePattern.MatchString(trimmedLine) {
		return false
	}
	if utf8.RuneCountInString(trimmedLine) > c.vocabulary.MaxTitleLength {
		return false
	}
	if containsString(c.vocabulary.NonFactionBanners, trimmedLine) {
		return false
	}
	return !containsAnySubstring(trimmedLine, c.vocabulary.StructuralKeywords)
}

// HasHeaderContext reports whether any of the lines preceding lines[index],
// up to the configured lookback, is a page banner or a page marker.
func (c *Classifier) HasHeaderContext(lines []string, index int) bool {
	for offset := 1; offset <= c.vocabulary.HeaderLookback && index-offset >= 0; offset++ {
		previousLine := strings.TrimSpace(lines[index-offset])

		if containsString(c.vocabulary.HeaderBanners, previousLine) {
			return true
		}
		if pageMarkerPrefixPattern.MatchString(previousLine) {
			return true
		}
	}
	return false
}

// Classify returns the kind of lines[index], using the preceding lines as
// context.
func (c *Classifier) Classify(lines []string, index int) LineKind {
	if index < 0 || index >= len(lines) {
		return LineOrdinary
	}
	line := lines[index]

	if c.IsTitleCandidate(line) {
		if c.HasHeaderContext(lines, index) {
			return LinePageHeader
		}
		return LineFactionTitle
	}

	if IsDataLine(line) {
		return LineData
	}
	return LineOrdinary
}

// IsDataLine reports whether a line is a unit point row or a battle
// formation row.
func IsDataLine(line string) bool {
	return formationPattern.MatchString(line) || unitPointPattern.MatchString(line)
}
