package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// UnitSize is a unit's model count, or a range such as "3-6" for units
// printed with a variable size. Numeric sizes are encoded as JSON numbers.
// A size read from a record is written back in its original form unless
// it was changed.
type UnitSize string

// MarshalJSON encodes numeric sizes as numbers and anything else as a string.
func (s UnitSize) MarshalJSON() ([]byte, error) {
	if count, err := strconv.Atoi(string(s)); err == nil {
		return json.Marshal(count)
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts either a number or a string.
func (s *UnitSize) UnmarshalJSON(data []byte) error {
	var count json.Number
	if err := json.Unmarshal(data, &count); err == nil {
		*s = UnitSize(count.String())
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("unit size must be a number or string: %w", err)
	}
	*s = UnitSize(text)
	return nil
}

// BattleProfile is the matched-play profile nested inside a unit record.
// Fields other than unitSize, points, and baseSize are preserved verbatim.
type BattleProfile struct {
	UnitSize UnitSize
	Points   int
	BaseSize string

	extra map[string]json.RawMessage
	order []string

	// rawUnitSize is unitSize exactly as it was read, and loadedUnitSize
	// its decoded value.
	rawUnitSize    json.RawMessage
	loadedUnitSize UnitSize
}

// DefaultBattleProfile is the profile synthesized for a unit record that
// has none when a point value is first applied.
func DefaultBattleProfile() *BattleProfile {
	return &BattleProfile{UnitSize: "1", Points: 0, BaseSize: "40mm"}
}

// MarshalJSON writes the known fields over any preserved extra fields.
func (p *BattleProfile) MarshalJSON() ([]byte, error) {
	fields := cloneFields(p.extra)
	switch {
	case p.rawUnitSize != nil && p.UnitSize == p.loadedUnitSize:
		fields["unitSize"] = p.rawUnitSize
	case p.UnitSize != "":
		if err := setField(fields, "unitSize", p.UnitSize); err != nil {
			return nil, err
		}
	}
	if err := setField(fields, "points", p.Points); err != nil {
		return nil, err
	}
	if p.BaseSize != "" {
		if err := setField(fields, "baseSize", p.BaseSize); err != nil {
			return nil, err
		}
	}
	return encodeFields(fields, p.order, "unitSize", "points", "baseSize")
}

// UnmarshalJSON reads the known fields and keeps the rest.
func (p *BattleProfile) UnmarshalJSON(data []byte) error {
	fields, order, err := splitFields(data)
	if err != nil {
		return err
	}
	p.order = order
	p.rawUnitSize = fields["unitSize"]
	if err := takeField(fields, "unitSize", &p.UnitSize); err != nil {
		return err
	}
	p.loadedUnitSize = p.UnitSize
	if err := takeField(fields, "points", &p.Points); err != nil {
		return err
	}
	if err := takeField(fields, "baseSize", &p.BaseSize); err != nil {
		return err
	}
	p.extra = fields
	return nil
}

// Unit is a stored unit record. Only ID, Name, and the battle profile's
// points are read or written by reconciliation; every other field of the
// record round-trips unchanged.
type Unit struct {
	ID            string
	Name          string
	FactionID     string
	BattleProfile *BattleProfile

	extra map[string]json.RawMessage
	order []string
}

// MarshalJSON writes the known fields over any preserved extra fields.
func (u *Unit) MarshalJSON() ([]byte, error) {
	fields := cloneFields(u.extra)
	if err := setField(fields, "id", u.ID); err != nil {
		return nil, err
	}
	if err := setField(fields, "name", u.Name); err != nil {
		return nil, err
	}
	if u.FactionID != "" {
		if err := setField(fields, "factionId", u.FactionID); err != nil {
			return nil, err
		}
	}
	if u.BattleProfile != nil {
		if err := setField(fields, "battleProfile", u.BattleProfile); err != nil {
			return nil, err
		}
	}
	return encodeFields(fields, u.order, "id", "name", "factionId", "battleProfile")
}

// UnmarshalJSON reads the known fields and keeps the rest.
func (u *Unit) UnmarshalJSON(data []byte) error {
	fields, order, err := splitFields(data)
	if err != nil {
		return err
	}
	u.order = order
	if err := takeField(fields, "id", &u.ID); err != nil {
		return err
	}
	if err := takeField(fields, "name", &u.Name); err != nil {
		return err
	}
	if err := takeField(fields, "factionId", &u.FactionID); err != nil {
		return err
	}
	if raw, ok := fields["battleProfile"]; ok && string(raw) != "null" {
		profile := &BattleProfile{}
		if err := json.Unmarshal(raw, profile); err != nil {
			return fmt.Errorf("invalid battleProfile: %w", err)
		}
		u.BattleProfile = profile
	}
	delete(fields, "battleProfile")
	u.extra = fields
	return nil
}

// Clone returns a deep copy of the unit.
func (u *Unit) Clone() *Unit {
	clone := &Unit{
		ID:        u.ID,
		Name:      u.Name,
		FactionID: u.FactionID,
		extra:     cloneFields(u.extra),
		order:     slices.Clone(u.order),
	}
	if u.BattleProfile != nil {
		profile := *u.BattleProfile
		profile.extra = cloneFields(u.BattleProfile.extra)
		profile.order = slices.Clone(u.BattleProfile.order)
		profile.rawUnitSize = slices.Clone(u.BattleProfile.rawUnitSize)
		clone.BattleProfile = &profile
	}
	return clone
}

// Formation is a battle formation entry on a faction record.
type Formation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Faction is a stored faction record keyed by its slug.
type Faction struct {
	// Slug is the record's key in the store; it is not part of the record body.
	Slug             string
	ID               string
	Name             string
	BattleFormations []Formation

	extra map[string]json.RawMessage
	order []string
}

// MarshalJSON writes the known fields over any preserved extra fields.
func (f *Faction) MarshalJSON() ([]byte, error) {
	fields := cloneFields(f.extra)
	if f.ID != "" {
		if err := setField(fields, "id", f.ID); err != nil {
			return nil, err
		}
	}
	if f.Name != "" {
		if err := setField(fields, "name", f.Name); err != nil {
			return nil, err
		}
	}
	if f.BattleFormations != nil {
		if err := setField(fields, "battleFormations", f.BattleFormations); err != nil {
			return nil, err
		}
	}
	return encodeFields(fields, f.order, "id", "name", "battleFormations")
}

// UnmarshalJSON reads the known fields and keeps the rest.
func (f *Faction) UnmarshalJSON(data []byte) error {
	fields, order, err := splitFields(data)
	if err != nil {
		return err
	}
	f.order = order
	if err := takeField(fields, "id", &f.ID); err != nil {
		return err
	}
	if err := takeField(fields, "name", &f.Name); err != nil {
		return err
	}
	if err := takeField(fields, "battleFormations", &f.BattleFormations); err != nil {
		return err
	}
	f.extra = fields
	return nil
}

// Clone returns a deep copy of the faction.
func (f *Faction) Clone() *Faction {
	clone := &Faction{
		Slug:  f.Slug,
		ID:    f.ID,
		Name:  f.Name,
		extra: cloneFields(f.extra),
		order: slices.Clone(f.order),
	}
	if f.BattleFormations != nil {
		clone.BattleFormations = make([]Formation, len(f.BattleFormations))
		copy(clone.BattleFormations, f.BattleFormations)
	}
	return clone
}

// splitFields decodes a JSON object into its members and the order their
// keys appeared in. A repeated key keeps its first position and last value.
func splitFields(data []byte) (map[string]json.RawMessage, []string, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	token, err := decoder.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("record is not a JSON object")
	}

	fields := make(map[string]json.RawMessage)
	var order []string
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := token.(string)
		if !ok {
			return nil, nil, fmt.Errorf("record key is not a string")
		}
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		if _, seen := fields[key]; !seen {
			order = append(order, key)
		}
		fields[key] = raw
	}
	if _, err := decoder.Token(); err != nil {
		return nil, nil, err
	}
	return fields, order, nil
}

// encodeFields writes a JSON object whose keys follow order, then the
// known keys not already written, then any remaining keys sorted.
func encodeFields(fields map[string]json.RawMessage, order []string, known ...string) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	written := make(map[string]bool, len(fields))
	for _, key := range slices.Concat(order, known) {
		if _, ok := fields[key]; ok && !written[key] {
			keys = append(keys, key)
			written[key] = true
		}
	}
	var rest []string
	for key := range fields {
		if !written[key] {
			rest = append(rest, key)
		}
	}
	slices.Sort(rest)
	keys = append(keys, rest...)

	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buffer.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buffer.Write(name)
		buffer.WriteByte(':')
		buffer.Write(fields[key])
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

// takeField decodes fields[key] into target and removes it from the map.
// A missing or null field leaves target unchanged.
func takeField(fields map[string]json.RawMessage, key string, target any) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	delete(fields, key)
	if string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}

func setField(fields map[string]json.RawMessage, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	fields[key] = raw
	return nil
}

func cloneFields(fields map[string]json.RawMessage) map[string]json.RawMessage {
	clone := make(map[string]json.RawMessage, len(fields)+4)
	for key, value := range fields {
		clone[key] = value
	}
	return clone
}
