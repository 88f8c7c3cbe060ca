package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// pageMarkerPattern matches the explicit page separators the extraction
// service inserts between pages, e.g. "--- Page 12 ---".
var pageMarkerPattern = regexp.MustCompile(`^---\s*Page\s+(\d+)\s*(?:---)?\s*$`)

// PageMarker returns the separator line written ahead of the given
// 1-based page number.
func PageMarker(pageNumber int) string {
	return fmt.Sprintf("--- Page %d ---", pageNumber)
}

// IsPageMarker reports whether a line is a page separator and, if so,
// which page it introduces.
func IsPageMarker(line string) (int, bool) {
	match := pageMarkerPattern.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return 0, false
	}
	pageNumber, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return pageNumber, true
}

// JoinPages assembles per-page text into a single document body. Empty
// pages are dropped but keep their page number, matching the behavior of
// the extraction service.
func JoinPages(pages []string) string {
	var blocks []string
	for pageIndex, pageText := range pages {
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		blocks = append(blocks, PageMarker(pageIndex+1)+"\n"+pageText+"\n")
	}
	return strings.Join(blocks, "\n")
}

// Page is one page recovered from a joined document body.
type Page struct {
	Number int
	Lines  []string
}

// SplitPages splits a line sequence on page markers. Lines before the
// first marker are returned as page 0.
func SplitPages(lines []string) []Page {
	var pages []Page
	current := Page{Number: 0}

	for _, line := range lines {
		if pageNumber, ok := IsPageMarker(line); ok {
			if current.Number != 0 || len(current.Lines) > 0 {
				pages = append(pages, current)
			}
			current = Page{Number: pageNumber}
			continue
		}
		current.Lines = append(current.Lines, line)
	}

	if current.Number != 0 || len(current.Lines) > 0 {
		pages = append(pages, current)
	}
	return pages
}
