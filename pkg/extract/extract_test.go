package extract

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseUnitPointLine(t *testing.T) {
	tests := []struct {
		line       string
		wantName   string
		wantModels int
		wantPoints int
		wantOK     bool
	}{
		{"✹ Crypt Flayers 3 150 (+10) Knights, Infantry 50mm", "Crypt Flayers", 3, 150, true},
		{"Crypt Ghouls 20 160 Serfs, Infantry 25mm", "Crypt Ghouls", 20, 160, true},
		{"Crypt Flayers (2 models) 1 75", "Crypt Flayers", 1, 75, true},
		{"✹ Abhorrant Archregent 1 160 (-20) 0-1 Royal Attendant, 40mm", "Abhorrant Archregent", 1, 160, true},
		{"  Varanguard 3 300", "Varanguard", 3, 300, true},
		{"Knight-Incantor 1 130 Infantry 40mm", "Knight-Incantor", 1, 130, true},
		{"Be'lakor 1 360 Monster 60mm", "Be'lakor", 1, 360, true},
		{"HEROES UNIT SIZE POINTS NOTES", "", 0, 0, false},
		{"✹ Battle Formation Knightly Echelon 0 Battletome: Flesh-eater Courts", "", 0, 0, false},
		{"--- Page 3 ---", "", 0, 0, false},
		{"SEPTEMBER 2025", "", 0, 0, false},
		{"Crypt Ghouls 20", "", 0, 0, false},
	}

	for _, tc := range tests {
		record, ok := ParseUnitPointLine(tc.line)
		if ok != tc.wantOK {
			t.Errorf("ParseUnitPointLine(%q) ok = %v, want %v", tc.line, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if record.Name != tc.wantName || record.ModelCount != tc.wantModels || record.Points != tc.wantPoints {
			t.Errorf("ParseUnitPointLine(%q) = %+v, want name=%q models=%d points=%d",
				tc.line, record, tc.wantName, tc.wantModels, tc.wantPoints)
		}
	}
}

func TestExtractUnitPoints_IgnoresDelta(t *testing.T) {
	table := ExtractUnitPoints([]string{"✹ Crypt Flayers 3 150 (+10) Knights, Infantry 50mm"})

	if diff := cmp.Diff(map[string]int{"Crypt Flayers": 150}, table.Map()); diff != "" {
		t.Errorf("ExtractUnitPoints() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractUnitPoints_StripsModelQualifier(t *testing.T) {
	table := ExtractUnitPoints([]string{"Crypt Flayers (2 models) 1 75"})

	if diff := cmp.Diff([]string{"Crypt Flayers"}, table.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractUnitPoints_LastWriteWinsFirstPositionKept(t *testing.T) {
	lines := []string{
		"Crypt Ghouls 20 160 Serfs, Infantry 25mm",
		"Crypt Flayers 3 150 Knights, Infantry 50mm",
		"--- Page 2 ---",
		"Crypt Ghouls 20 170 Serfs, Infantry 25mm",
	}

	table := ExtractUnitPoints(lines)

	if diff := cmp.Diff([]string{"Crypt Ghouls", "Crypt Flayers"}, table.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if points, _ := table.Get("Crypt Ghouls"); points != 170 {
		t.Errorf("expected later value 170, got %d", points)
	}
}

func TestUnitPoints_RecordsLineIndexAndStopsEarly(t *testing.T) {
	lines := []string{
		"HEROES UNIT SIZE POINTS NOTES",
		"Crypt Ghouls 20 160",
		"Crypt Flayers 3 150",
	}

	var seen []UnitPointRecord
	for record := range UnitPoints(lines) {
		seen = append(seen, record)
		break
	}

	if len(seen) != 1 {
		t.Fatalf("expected the producer to stop after one record, got %d", len(seen))
	}
	if seen[0].Index != 1 || seen[0].Name != "Crypt Ghouls" {
		t.Errorf("unexpected first record %+v", seen[0])
	}
}

func TestParseFormationLine(t *testing.T) {
	record, ok := ParseFormationLine("✹ Battle Formation Knightly Echelon 0 Battletome: Flesh-eater Courts")
	if !ok {
		t.Fatal("expected formation line to match")
	}

	want := FormationRecord{
		ID:          "knightly-echelon",
		Name:        "Knightly Echelon",
		Description: "From Battletome: Flesh-eater Courts",
		Points:      0,
		Source:      "Battletome: Flesh-eater Courts",
	}
	if diff := cmp.Diff(want, record); diff != "" {
		t.Errorf("ParseFormationLine() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFormationLine_Variants(t *testing.T) {
	tests := []struct {
		line       string
		wantID     string
		wantSource string
		wantOK     bool
	}{
		{"Battle Formation Lords of the Manor 0 Battletome: Flesh-eater Courts", "lords-of-the-manor", "Battletome: Flesh-eater Courts", true},
		{"✹ Battle Formation Veteran Cannoneers 30 (+30) Scourge of Ghyran", "veteran-cannoneers", "Scourge of Ghyran", true},
		{"Battle Formation Nagash's Chosen 10 Grand Host", "nagashs-chosen", "Grand Host", true},
		{"Battle Formation 0 Missing Name", "", "", false},
		{"Crypt Ghouls 20 160", "", "", false},
	}

	for _, tc := range tests {
		record, ok := ParseFormationLine(tc.line)
		if ok != tc.wantOK {
			t.Errorf("ParseFormationLine(%q) ok = %v, want %v", tc.line, ok, tc.wantOK)
			continue
		}
		if ok && (record.ID != tc.wantID || record.Source != tc.wantSource) {
			t.Errorf("ParseFormationLine(%q) = %+v, want id=%q source=%q", tc.line, record, tc.wantID, tc.wantSource)
		}
	}
}

func TestExtractFormations_KeepsOrderAndDuplicates(t *testing.T) {
	lines := []string{
		"✹ Battle Formation Knightly Echelon 0 Battletome: Flesh-eater Courts",
		"Crypt Ghouls 20 160",
		"Battle Formation Lords of the Manor 0 Battletome: Flesh-eater Courts",
		"--- Page 5 ---",
		"Battle Formation Knightly Echelon 0 Faction Pack: Flesh-eater Courts",
	}

	formations := ExtractFormations(lines)

	var ids []string
	for _, formation := range formations {
		ids = append(ids, formation.ID)
	}
	want := []string{"knightly-echelon", "lords-of-the-manor", "knightly-echelon"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("formation ids mismatch (-want +got):\n%s", diff)
	}
	if formations[2].Description != "From Faction Pack: Flesh-eater Courts" {
		t.Errorf("unexpected duplicate description %q", formations[2].Description)
	}
	if formations[2].Index != 4 {
		t.Errorf("expected index 4, got %d", formations[2].Index)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Knightly Echelon":   "knightly-echelon",
		"Nagash's Chosen":    "nagashs-chosen",
		"Nagash’s Chosen":    "nagashs-chosen",
		"Lords of the Manor": "lords-of-the-manor",
		"Flesh-eater Host":   "flesh-eater-host",
	}

	for input, want := range tests {
		if got := Slugify(input); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPointTable_MarshalJSONKeepsOrder(t *testing.T) {
	table := NewPointTable()
	table.Set("Zombie Dragon", 300)
	table.Set("Crypt Ghouls", 160)

	data, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `[{"name":"Zombie Dragon","points":300},{"name":"Crypt Ghouls","points":160}]`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestPointTable_AllStopsEarly(t *testing.T) {
	table := NewPointTable()
	table.Set("a", 1)
	table.Set("b", 2)

	count := 0
	for range table.All() {
		count++
		break
	}
	if count != 1 {
		t.Errorf("expected one iteration, got %d", count)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d", table.Len())
	}
}
