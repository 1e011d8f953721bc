package ecs

import (
	"slices"

	"github.com/kamstrup/intmap"
)

// ArchetypeID is the dense, stable index of an archetype in its Storage. Archetypes are
// never destroyed, so an ID stays valid for the lifetime of the Storage.
type ArchetypeID uint32

// Archetype is the table of every entity sharing one signature: one column per component
// type plus a parallel column of entity handles. All columns have the same length.
type Archetype struct {
	id        ArchetypeID
	signature Signature
	columns   []abstractColumn
	entities  []Entity

	// Cached transitions to the archetype reached by adding or removing one component.
	addEdges    *intmap.Map[ComponentID, ArchetypeID]
	removeEdges *intmap.Map[ComponentID, ArchetypeID]
}

func newArchetype(id ArchetypeID, sig Signature, registry *ComponentRegistry) *Archetype {
	a := &Archetype{
		id:          id,
		signature:   sig,
		columns:     make([]abstractColumn, len(sig.ids)),
		entities:    make([]Entity, 0, initialColumnCapacity),
		addEdges:    intmap.New[ComponentID, ArchetypeID](8),
		removeEdges: intmap.New[ComponentID, ArchetypeID](8),
	}
	for i, cid := range sig.ids {
		a.columns[i] = registry.newColumn(cid)
	}
	return a
}

// ID returns the archetype's identifier.
func (a *Archetype) ID() ArchetypeID {
	return a.id
}

// Signature returns the component set of every row.
func (a *Archetype) Signature() Signature {
	return a.signature
}

// Len returns the number of rows.
func (a *Archetype) Len() int {
	return len(a.entities)
}

// Entities returns a copy of the entity column.
func (a *Archetype) Entities() []Entity {
	return slices.Clone(a.entities)
}

// Has reports whether the archetype stores id.
func (a *Archetype) Has(id ComponentID) bool {
	return a.signature.Has(id)
}

// columnIndex returns the position of id in columns, or -1.
func (a *Archetype) columnIndex(id ComponentID) int {
	idx, found := slices.BinarySearch(a.signature.ids, id)
	if !found {
		return -1
	}
	return idx
}

func (a *Archetype) column(id ComponentID) abstractColumn {
	idx := a.columnIndex(id)
	if idx < 0 {
		return nil
	}
	return a.columns[idx]
}

// component returns a pointer to the value of id at row, or nil if the archetype does not
// store id.
func (a *Archetype) component(row int, id ComponentID) any {
	col := a.column(id)
	if col == nil || row < 0 || row >= len(a.entities) {
		return nil
	}
	return col.get(row)
}

// pushRow appends a zeroed row owned by e and returns its index.
func (a *Archetype) pushRow(e Entity) int {
	a.entities = append(a.entities, e)
	for _, col := range a.columns {
		col.extend()
	}
	return len(a.entities) - 1
}

// swapRemove removes row by moving the last row into its place. It returns the entity that
// was moved, if any.
func (a *Archetype) swapRemove(row int) (Entity, bool) {
	last := len(a.entities) - 1
	for _, col := range a.columns {
		col.remove(row)
	}
	a.entities[row] = a.entities[last]
	a.entities[last] = Entity{}
	a.entities = a.entities[:last]
	if row == last {
		return Entity{}, false
	}
	return a.entities[row], true
}
