package ecs

import (
	"iter"
	"reflect"

	"github.com/rotisserie/eris"
)

// Term is one component requested by a query together with the access it needs.
type Term struct {
	ID     ComponentID
	Access Access
}

// ReadOf requests read access to id.
func ReadOf(id ComponentID) Term {
	return Term{ID: id, Access: AccessRead}
}

// WriteOf requests write access to id.
func WriteOf(id ComponentID) Term {
	return Term{ID: id, Access: AccessWrite}
}

// QueryDesc describes which entities a query visits and what it may touch.
// Entities must hold every Include term and no Exclude type. Optional terms are bound when
// present. Filter further narrows the archetypes visited.
type QueryDesc struct {
	Include  []Term
	Exclude  []ComponentID
	Optional []Term
	Filter   Filter
}

// Access returns the access set implied by the description.
func (d QueryDesc) Access() AccessSet {
	var set AccessSet
	for _, t := range d.Include {
		set.Add(t.ID, t.Access)
	}
	for _, t := range d.Optional {
		set.Add(t.ID, t.Access)
	}
	return set
}

func (d QueryDesc) referenced() []ComponentID {
	ids := make([]ComponentID, 0, len(d.Include)+len(d.Exclude)+len(d.Optional))
	for _, t := range d.Include {
		ids = append(ids, t.ID)
	}
	ids = append(ids, d.Exclude...)
	for _, t := range d.Optional {
		ids = append(ids, t.ID)
	}
	if d.Filter != nil {
		ids = append(ids, d.Filter.Components()...)
	}
	return ids
}

type planArchetype struct {
	arch *Archetype
	// cols[i] is the column position of terms[i], or -1 for an absent optional term.
	cols []int
}

// Plan is a compiled query. It snapshots the archetypes matching its description at
// compile time; archetypes created later are only visited after Refresh.
type Plan struct {
	storage  *Storage
	desc     QueryDesc
	access   AccessSet
	terms    []Term
	byType   map[reflect.Type]int
	required Signature
	excluded Signature
	matches  []planArchetype
	byArch   map[ArchetypeID]int
	version  uint64
}

// Compile validates desc and precomputes the matching archetypes.
func (s *Storage) Compile(desc QueryDesc) (*Plan, error) {
	if err := s.registry.validate(desc.referenced()); err != nil {
		return nil, err
	}

	p := &Plan{
		storage: s,
		desc:    desc,
		access:  desc.Access(),
		byType:  make(map[reflect.Type]int),
	}

	required := make([]ComponentID, 0, len(desc.Include))
	for _, t := range desc.Include {
		required = append(required, t.ID)
	}
	p.required = NewSignature(required...)
	p.excluded = NewSignature(desc.Exclude...)
	for _, id := range p.excluded.ids {
		if p.required.Has(id) {
			return nil, eris.Errorf("component %d is both included and excluded", id)
		}
	}

	p.terms = make([]Term, 0, len(desc.Include)+len(desc.Optional))
	seen := make(map[ComponentID]int)
	for _, t := range append(append([]Term{}, desc.Include...), desc.Optional...) {
		if idx, ok := seen[t.ID]; ok {
			if t.Access == AccessWrite {
				p.terms[idx].Access = AccessWrite
			}
			continue
		}
		layout, err := s.registry.Layout(t.ID)
		if err != nil {
			return nil, err
		}
		seen[t.ID] = len(p.terms)
		p.byType[layout.Type] = len(p.terms)
		p.terms = append(p.terms, t)
	}

	p.rebuild()
	return p, nil
}

func (p *Plan) matchesSignature(sig Signature) bool {
	if !sig.Contains(p.required) {
		return false
	}
	for _, id := range p.excluded.ids {
		if sig.Has(id) {
			return false
		}
	}
	return p.desc.Filter == nil || p.desc.Filter.Matches(sig)
}

func (p *Plan) rebuild() {
	p.version = p.storage.Version()
	p.matches = p.matches[:0]
	p.byArch = make(map[ArchetypeID]int)
	for _, arch := range p.storage.archetypes {
		if !p.matchesSignature(arch.signature) {
			continue
		}
		cols := make([]int, len(p.terms))
		for i, t := range p.terms {
			cols[i] = arch.columnIndex(t.ID)
		}
		p.byArch[arch.id] = len(p.matches)
		p.matches = append(p.matches, planArchetype{arch: arch, cols: cols})
	}
}

// Stale reports whether archetypes were created since the plan was compiled.
func (p *Plan) Stale() bool {
	return p.version != p.storage.Version()
}

// Refresh recompiles the archetype snapshot if it is stale.
func (p *Plan) Refresh() {
	if p.Stale() {
		p.rebuild()
	}
}

// Access returns the access set the plan was compiled with.
func (p *Plan) Access() AccessSet {
	return p.access
}

// Desc returns the description the plan was compiled from.
func (p *Plan) Desc() QueryDesc {
	return p.desc
}

// Archetypes returns the IDs of the matching archetypes.
func (p *Plan) Archetypes() []ArchetypeID {
	ids := make([]ArchetypeID, len(p.matches))
	for i, m := range p.matches {
		ids[i] = m.arch.id
	}
	return ids
}

// Len returns the number of rows the plan currently visits.
func (p *Plan) Len() int {
	n := 0
	for _, m := range p.matches {
		n += m.arch.Len()
	}
	return n
}

// Iter yields every matching row once. Each call starts a new pass.
func (p *Plan) Iter() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for i := range p.matches {
			m := &p.matches[i]
			for row := 0; row < m.arch.Len(); row++ {
				if !yield(Row{plan: p, match: m, row: row}) {
					return
				}
			}
		}
	}
}

// Entities yields the entity of every matching row.
func (p *Plan) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for row := range p.Iter() {
			if !yield(row.Entity()) {
				return
			}
		}
	}
}

// Lookup returns a read-only row for e if e is alive and matched by the plan.
func (p *Plan) Lookup(e Entity) (Row, bool) {
	loc, ok := p.storage.Location(e)
	if !ok {
		return Row{}, false
	}
	idx, ok := p.byArch[loc.Archetype]
	if !ok {
		return Row{}, false
	}
	return Row{plan: p, match: &p.matches[idx], row: loc.Row, readOnly: true}, true
}

// Row is one entity visited by a plan.
type Row struct {
	plan     *Plan
	match    *planArchetype
	row      int
	readOnly bool
}

// Entity returns the entity stored in the row.
func (r Row) Entity() Entity {
	return r.match.arch.entities[r.row]
}

// Archetype returns the archetype holding the row.
func (r Row) Archetype() *Archetype {
	return r.match.arch
}

// Has reports whether the row holds id.
func (r Row) Has(id ComponentID) bool {
	return r.match.arch.Has(id)
}

// ReadOnly reports whether the row was obtained through Lookup.
func (r Row) ReadOnly() bool {
	return r.readOnly
}

// Value returns a pointer to the value of id, or nil when the row does not hold it or the
// plan has no term for it. Only write terms of rows yielded by Iter point into the column;
// read terms and rows from Lookup get a pointer to a copy.
func (r Row) Value(id ComponentID) any {
	for i, t := range r.plan.terms {
		if t.ID != id {
			continue
		}
		pos := r.match.cols[i]
		if pos < 0 {
			return nil
		}
		col := r.match.arch.columns[pos]
		if r.readOnly || !r.plan.access.Allows(id, AccessWrite) {
			return col.clone(r.row)
		}
		return col.get(r.row)
	}
	return nil
}

func (r Row) column(t reflect.Type, access Access) (abstractColumn, bool) {
	idx, ok := r.plan.byType[t]
	if !ok || !r.plan.access.Allows(r.plan.terms[idx].ID, access) {
		panic(eris.Wrapf(ErrUndeclaredAccess, "%s access to %s", access, t))
	}
	if access == AccessWrite && r.readOnly {
		panic(eris.Wrapf(ErrUndeclaredAccess, "write access to %s through a looked up row", t))
	}
	pos := r.match.cols[idx]
	if pos < 0 {
		return nil, false
	}
	return r.match.arch.columns[pos], true
}

// Read returns a copy of the row's T. ok is false when T is an optional term the row does
// not hold. Reading a type the plan did not declare panics with ErrUndeclaredAccess.
func Read[T any](r Row) (value T, ok bool) {
	col, ok := r.column(reflect.TypeFor[T](), AccessRead)
	if !ok {
		return value, false
	}
	return col.(*column[T]).components[r.row], true
}

// Write returns a pointer to the row's T. The plan must hold a write term for T.
func Write[T any](r Row) (*T, bool) {
	col, ok := r.column(reflect.TypeFor[T](), AccessWrite)
	if !ok {
		return nil, false
	}
	return &col.(*column[T]).components[r.row], true
}
