package extract

import (
	"encoding/json"
	"iter"
)

// PointTable maps extracted unit names to point values while remembering
// the order in which names first appeared. Iteration order is therefore
// deterministic, which the reconciler relies on when several names could
// match the same stored unit.
type PointTable struct {
	names  []string
	points map[string]int
}

// NewPointTable creates an empty table.
func NewPointTable() *PointTable {
	return &PointTable{points: make(map[string]int)}
}

// Set records a value for name. Existing names keep their position.
func (t *PointTable) Set(name string, points int) {
	if _, exists := t.points[name]; !exists {
		t.names = append(t.names, name)
	}
	t.points[name] = points
}

// Get returns the value recorded for name.
func (t *PointTable) Get(name string) (int, bool) {
	points, ok := t.points[name]
	return points, ok
}

// Len returns the number of distinct names.
func (t *PointTable) Len() int {
	return len(t.names)
}

// Names returns the names in first-appearance order.
func (t *PointTable) Names() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// All yields name/points pairs in first-appearance order.
func (t *PointTable) All() iter.Seq2[string, int] {
	return func(yield func(string, int) bool) {
		for _, name := range t.names {
			if !yield(name, t.points[name]) {
				return
			}
		}
	}
}

// Map returns a copy of the table as a plain map.
func (t *PointTable) Map() map[string]int {
	copied := make(map[string]int, len(t.points))
	for name, points := range t.points {
		copied[name] = points
	}
	return copied
}

// MarshalJSON encodes the table as an ordered list of name/points pairs.
func (t *PointTable) MarshalJSON() ([]byte, error) {
	type entry struct {
		Name   string `json:"name"`
		Points int    `json:"points"`
	}
	entries := make([]entry, 0, len(t.names))
	for name, points := range t.All() {
		entries = append(entries, entry{Name: name, Points: points})
	}
	return json.Marshal(entries)
}
