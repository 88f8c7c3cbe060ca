package extract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFactionNotFound is returned when the requested faction title does not
// appear in the document.
var ErrFactionNotFound = errors.New("faction title not found in document")

// Span is the half-open range [Start, End) of zero-based line indices
// belonging to one faction.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of lines in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Lines returns the lines covered by the span.
func (s Span) Lines(lines []string) []string {
	return lines[s.Start:s.End]
}

// String renders the span with 1-based, inclusive line numbers.
func (s Span) String() string {
	return fmt.Sprintf("lines %d-%d", s.Start+1, s.End)
}

// Boundary is the outcome of examining one title candidate while scanning
// a faction section.
type Boundary int

const (
	// BoundaryContinue means the candidate does not end the section.
	BoundaryContinue Boundary = iota

	// BoundarySameFactionHeader means the candidate is a page header that
	// restates the faction being scanned.
	BoundarySameFactionHeader

	// BoundaryNewFactionHeader means the candidate is a page header naming
	// a different faction.
	BoundaryNewFactionHeader

	// BoundaryNewFactionTitle means the candidate has no page header
	// context but is followed by a line that confirms a section start.
	BoundaryNewFactionTitle
)

// Stops reports whether the boundary ends the current section.
func (b Boundary) Stops() bool {
	return b == BoundaryNewFactionHeader || b == BoundaryNewFactionTitle
}

// String returns a short label for the boundary.
func (b Boundary) String() string {
	switch b {
	case BoundarySameFactionHeader:
		return "same-faction-header"
	case BoundaryNewFactionHeader:
		return "new-faction-header"
	case BoundaryNewFactionTitle:
		return "new-faction-title"
	default:
		return "continue"
	}
}

// DecideBoundary is the pure decision function applied to each title
// candidate inside a section. Precedence:
//
//  1. with header context and the same name: a repeated page header, keep going
//  2. with header context and a different name: a new faction's page, stop
//  3. without header context: stop only if the next line is empty, a
//     boundary follower ("UPDATED", "NEW"), or a "HEROES ... UNIT" header row
func DecideBoundary(candidate, factionName string, headerContext bool, nextLine string, vocabulary Vocabulary) Boundary {
	trimmedCandidate := strings.TrimSpace(candidate)

	if headerContext {
		if trimmedCandidate == factionName {
			return BoundarySameFactionHeader
		}
		return BoundaryNewFactionHeader
	}

	trimmedNext := strings.TrimSpace(nextLine)
	if trimmedNext == "" ||
		containsString(vocabulary.BoundaryFollowers, trimmedNext) ||
		columnHeaderPattern.MatchString(trimmedNext) {
		return BoundaryNewFactionTitle
	}
	return BoundaryContinue
}

// Segmenter locates a faction's section inside a multi-faction document.
type Segmenter struct {
	classifier *Classifier
}

// NewSegmenter creates a segmenter that uses the given classifier.
func NewSegmenter(classifier *Classifier) *Segmenter {
	if classifier == nil {
		classifier = NewClassifier(DefaultVocabulary())
	}
	return &Segmenter{classifier: classifier}
}

// Segment finds the span of lines belonging to factionName. The span
// starts at the first line whose trimmed text equals factionName and ends
// before the first line that introduces a different faction, or at the
// end of the document. Repeated page headers naming the same faction do
// not end the span. Returns ErrFactionNotFound when the title is absent
// or blank.
func (s *Segmenter) Segment(lines []string, factionName string) (Span, error) {
	factionName = strings.TrimSpace(factionName)
	if factionName == "" {
		return Span{}, fmt.Errorf("%w: empty faction title", ErrFactionNotFound)
	}

	start := -1
	for lineIndex, line := range lines {
		if strings.TrimSpace(line) == factionName {
			start = lineIndex
			break
		}
	}
	if start == -1 {
		return Span{}, fmt.Errorf("%w: %q", ErrFactionNotFound, factionName)
	}

	vocabulary := s.classifier.Vocabulary()
	for lineIndex := start + 1; lineIndex < len(lines); lineIndex++ {
		if !s.classifier.IsTitleCandidate(lines[lineIndex]) {
			continue
		}

		nextLine := ""
		if lineIndex+1 < len(lines) {
			nextLine = lines[lineIndex+1]
		}

		boundary := DecideBoundary(
			lines[lineIndex],
			factionName,
			s.classifier.HasHeaderContext(lines, lineIndex),
			nextLine,
			vocabulary,
		)
		if boundary.Stops() {
			return Span{Start: start, End: lineIndex}, nil
		}
	}

	return Span{Start: start, End: len(lines)}, nil
}

// WholeDocument returns the span covering every line, used when a
// document belongs to a single faction.
func WholeDocument(lines []string) Span {
	return Span{Start: 0, End: len(lines)}
}
