package ecs

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// ArchetypeSnapshot is the serialized form of one archetype.
type ArchetypeSnapshot struct {
	ID         ArchetypeID      `json:"id"`
	Components []string         `json:"components"`
	Rows       []EntitySnapshot `json:"rows"`
}

// EntitySnapshot is the serialized form of one row.
type EntitySnapshot struct {
	Entity     Entity                     `json:"entity"`
	Components map[string]json.RawMessage `json:"components"`
}

// Snapshot captures every non-empty archetype. Component values are JSON encoded, so
// they must be serializable.
func (s *Storage) Snapshot() ([]ArchetypeSnapshot, error) {
	out := make([]ArchetypeSnapshot, 0, len(s.archetypes))
	for _, arch := range s.archetypes {
		if arch.Len() == 0 {
			continue
		}
		names := make([]string, len(arch.columns))
		for i, col := range arch.columns {
			layout, err := s.registry.Layout(col.id())
			if err != nil {
				return nil, err
			}
			names[i] = layout.Name
		}

		snap := ArchetypeSnapshot{
			ID:         arch.id,
			Components: names,
			Rows:       make([]EntitySnapshot, arch.Len()),
		}
		for row, e := range arch.entities {
			values := make(map[string]json.RawMessage, len(arch.columns))
			for i, col := range arch.columns {
				data, err := col.marshalRow(row)
				if err != nil {
					return nil, eris.Wrapf(err, "archetype %d", arch.id)
				}
				values[names[i]] = data
			}
			snap.Rows[row] = EntitySnapshot{Entity: e, Components: values}
		}
		out = append(out, snap)
	}
	return out, nil
}

// MarshalSnapshot encodes Snapshot as JSON.
func (s *Storage) MarshalSnapshot() ([]byte, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode snapshot")
	}
	return data, nil
}
