package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitLines_NormalizesLineEndings(t *testing.T) {
	lines := SplitLines("FLESH-EATER COURTS\r\nUPDATED\rHEROES")

	want := []string{"FLESH-EATER COURTS", "UPDATED", "HEROES"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("SplitLines() mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitLines_ComposesDecomposedText(t *testing.T) {
	// "e" followed by a combining acute accent.
	lines := SplitLines("Fle\u0301sh")

	if lines[0] != "Fl\u00e9sh" {
		t.Errorf("expected NFC composed text, got %q", lines[0])
	}
}

func TestDocument_LineIsOneIndexed(t *testing.T) {
	doc := FromLines("test", []string{"first", "second", "third"})

	tests := []struct {
		lineNumber int
		want       string
	}{
		{0, ""},
		{1, "first"},
		{3, "third"},
		{4, ""},
	}

	for _, tc := range tests {
		if got := doc.Line(tc.lineNumber); got != tc.want {
			t.Errorf("Line(%d) = %q, want %q", tc.lineNumber, got, tc.want)
		}
	}
}

func TestDocument_SliceClampsBounds(t *testing.T) {
	doc := FromLines("test", []string{"a", "b", "c"})

	if got := doc.Slice(-2, 10); len(got) != 3 {
		t.Errorf("expected full slice, got %v", got)
	}
	if got := doc.Slice(2, 1); got != nil {
		t.Errorf("expected nil for empty range, got %v", got)
	}
	if diff := cmp.Diff([]string{"b"}, doc.Slice(1, 2)); diff != "" {
		t.Errorf("Slice(1, 2) mismatch (-want +got):\n%s", diff)
	}
}

func TestFromLines_CopiesInput(t *testing.T) {
	input := []string{"a", "b"}
	doc := FromLines("test", input)
	input[0] = "changed"

	if doc.Line(1) != "a" {
		t.Errorf("document should not alias caller slice, got %q", doc.Line(1))
	}
}

func TestJoinPages_WritesMarkersAndSkipsEmptyPages(t *testing.T) {
	body := JoinPages([]string{"page one", "   ", "page three"})

	want := "--- Page 1 ---\npage one\n\n--- Page 3 ---\npage three\n"
	if body != want {
		t.Errorf("JoinPages() = %q, want %q", body, want)
	}
}

func TestSplitPages_RoundTripsJoinPages(t *testing.T) {
	body := JoinPages([]string{"alpha\nbeta", "gamma"})
	pages := SplitPages(SplitLines(body))

	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d: %+v", len(pages), pages)
	}
	if pages[0].Number != 1 || pages[1].Number != 2 {
		t.Errorf("unexpected page numbers: %d, %d", pages[0].Number, pages[1].Number)
	}
	if pages[0].Lines[0] != "alpha" || pages[0].Lines[1] != "beta" {
		t.Errorf("unexpected first page lines: %v", pages[0].Lines)
	}
}

func TestSplitPages_LeadingTextIsPageZero(t *testing.T) {
	pages := SplitPages([]string{"preamble", "--- Page 1 ---", "body"})

	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Number != 0 || pages[0].Lines[0] != "preamble" {
		t.Errorf("expected preamble as page 0, got %+v", pages[0])
	}
}

func TestIsPageMarker(t *testing.T) {
	tests := []struct {
		line     string
		wantPage int
		wantOK   bool
	}{
		{"--- Page 7 ---", 7, true},
		{"  ---Page 12", 12, true},
		{"--- Pages 7 ---", 0, false},
		{"Page 7", 0, false},
	}

	for _, tc := range tests {
		page, ok := IsPageMarker(tc.line)
		if page != tc.wantPage || ok != tc.wantOK {
			t.Errorf("IsPageMarker(%q) = (%d, %v), want (%d, %v)", tc.line, page, ok, tc.wantPage, tc.wantOK)
		}
	}
}

func TestLoad_MissingSource(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.txt"))

	if !errors.Is(err, ErrMissingSource) {
		t.Errorf("expected ErrMissingSource, got %v", err)
	}
}

func TestLoad_ReadsDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Battle Profiles.txt")
	if err := os.WriteFile(path, []byte("BATTLE PROFILES\nSTORMCAST ETERNALS\n"), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Name != "Battle Profiles.txt" {
		t.Errorf("Name = %q", doc.Name)
	}
	if doc.Line(2) != "STORMCAST ETERNALS" {
		t.Errorf("Line(2) = %q", doc.Line(2))
	}
}

func TestLoadPages_JoinsInOrder(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "p1.txt")
	second := filepath.Join(dir, "p2.txt")
	if err := os.WriteFile(first, []byte("one"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("two"), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := LoadPages("joined", []string{first, second})
	if err != nil {
		t.Fatalf("LoadPages() error = %v", err)
	}

	pages := SplitPages(doc.Lines())
	if len(pages) != 2 || pages[0].Lines[0] != "one" || pages[1].Lines[0] != "two" {
		t.Errorf("unexpected pages: %+v", pages)
	}

	if _, err := LoadPages("joined", []string{filepath.Join(dir, "p3.txt")}); !errors.Is(err, ErrMissingSource) {
		t.Errorf("expected ErrMissingSource for missing page, got %v", err)
	}
}
