package extract

import (
	"regexp"
	"strings"
)

// Vocabulary holds the fixed strings the classifier uses to tell faction
// titles apart from banners, column headers, and page furniture. The
// defaults describe the current battle profile document; they are
// configurable so that format drift can be absorbed without code changes.
type Vocabulary struct {
	// NonFactionBanners are all-caps lines that are never faction titles.
	NonFactionBanners []string `yaml:"non_faction_banners" json:"non_faction_banners"`

	// StructuralKeywords disqualify a line from being a title when they
	// appear anywhere in it (column headers such as "UNIT SIZE POINTS").
	StructuralKeywords []string `yaml:"structural_keywords" json:"structural_keywords"`

	// HeaderBanners mark the top of a page. A title candidate preceded by
	// one of them is a page header rather than a section start.
	HeaderBanners []string `yaml:"header_banners" json:"header_banners"`

	// BoundaryFollowers are lines that, directly after a title candidate,
	// confirm that a new faction section begins there.
	BoundaryFollowers []string `yaml:"boundary_followers" json:"boundary_followers"`

	// MaxTitleLength is the longest line, in characters, accepted as a title.
	MaxTitleLength int `yaml:"max_title_length" json:"max_title_length"`

	// HeaderLookback is how many preceding lines are searched for page
	// header context.
	HeaderLookback int `yaml:"header_lookback" json:"header_lookback"`
}

// DefaultVocabulary returns the vocabulary for the battle profile documents.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		NonFactionBanners: []string{
			"UPDATED",
			"NEW",
			"BATTLE PROFILES",
			"SEPTEMBER 2025",
			"WARHAMMER LEGENDS",
		},
		StructuralKeywords: []string{
			"POINTS", "SIZE", "NOTES", "HEROES", "UNITS",
			"LEGENDS", "REGIMENT", "OPTIONS", "BASE",
		},
		HeaderBanners: []string{
			"BATTLE PROFILES",
			"SEPTEMBER 2025",
		},
		BoundaryFollowers: []string{"UPDATED", "NEW"},
		MaxTitleLength:    30,
		HeaderLookback:    5,
	}
}

// withDefaults fills zero-valued fields from DefaultVocabulary.
func (v Vocabulary) withDefaults() Vocabulary {
	defaults := DefaultVocabulary()
	if v.NonFactionBanners == nil {
		v.NonFactionBanners = defaults.NonFactionBanners
	}
	if v.StructuralKeywords == nil {
		v.StructuralKeywords = defaults.StructuralKeywords
	}
	if v.HeaderBanners == nil {
		v.HeaderBanners = defaults.HeaderBanners
	}
	if v.BoundaryFollowers == nil {
		v.BoundaryFollowers = defaults.BoundaryFollowers
	}
	if v.MaxTitleLength <= 0 {
		v.MaxTitleLength = defaults.MaxTitleLength
	}
	if v.HeaderLookback <= 0 {
		v.HeaderLookback = defaults.HeaderLookback
	}
	return v
}

var (
	// titlePattern matches an all-uppercase line of letters, spaces, and hyphens.
	titlePattern = regexp.MustCompile(`^[A-Z][A-Z\s\-]+$`)

	// pageMarkerPrefixPattern matches the "--- Page N" separators written
	// between pages by the extraction service.
	pageMarkerPrefixPattern = regexp.MustCompile(`^---\s*Page\s+\d+`)

	// columnHeaderPattern matches the "HEROES UNIT SIZE POINTS ..." header
	// row that opens a faction's table.
	columnHeaderPattern = regexp.MustCompile(`^HEROES\s+UNIT`)
)

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func containsAnySubstring(line string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(line, keyword) {
			return true
		}
	}
	return false
}
