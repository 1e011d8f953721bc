package ecs

import (
	"github.com/kelindar/bitmap"
)

// Filter selects archetypes by their signature. Filters never grant access to component
// data; they only narrow which archetypes a plan visits.
type Filter interface {
	Matches(sig Signature) bool
	// Components lists every component ID the filter refers to.
	Components() []ComponentID
}

type allFilter struct{}

type andFilter struct {
	filters []Filter
}

type orFilter struct {
	filters []Filter
}

type notFilter struct {
	filter Filter
}

type containsFilter struct {
	ids  []ComponentID
	mask bitmap.Bitmap
}

type exactFilter struct {
	sig Signature
}

// All matches every archetype.
func All() Filter {
	return allFilter{}
}

// And matches when every filter matches.
func And(filters ...Filter) Filter {
	return andFilter{filters: filters}
}

// Or matches when any filter matches.
func Or(filters ...Filter) Filter {
	return orFilter{filters: filters}
}

// Not inverts filter.
func Not(filter Filter) Filter {
	return notFilter{filter: filter}
}

// Contains matches archetypes holding at least ids.
func Contains(ids ...ComponentID) Filter {
	var mask bitmap.Bitmap
	for _, id := range ids {
		mask.Set(uint32(id))
	}
	return containsFilter{ids: ids, mask: mask}
}

// Exact matches the archetype holding exactly ids.
func Exact(ids ...ComponentID) Filter {
	return exactFilter{sig: NewSignature(ids...)}
}

func (allFilter) Matches(Signature) bool    { return true }
func (allFilter) Components() []ComponentID { return nil }

func (f andFilter) Matches(sig Signature) bool {
	for _, sub := range f.filters {
		if !sub.Matches(sig) {
			return false
		}
	}
	return true
}

func (f andFilter) Components() []ComponentID {
	return collectComponents(f.filters)
}

func (f orFilter) Matches(sig Signature) bool {
	for _, sub := range f.filters {
		if sub.Matches(sig) {
			return true
		}
	}
	return false
}

func (f orFilter) Components() []ComponentID {
	return collectComponents(f.filters)
}

func (f notFilter) Matches(sig Signature) bool {
	return !f.filter.Matches(sig)
}

func (f notFilter) Components() []ComponentID {
	return f.filter.Components()
}

func (f containsFilter) Matches(sig Signature) bool {
	intersect := f.mask.Clone(nil)
	intersect.And(sig.mask)
	return intersect.Count() == f.mask.Count()
}

func (f containsFilter) Components() []ComponentID {
	return f.ids
}

func (f exactFilter) Matches(sig Signature) bool {
	return f.sig.Equal(sig)
}

func (f exactFilter) Components() []ComponentID {
	return f.sig.ids
}

func collectComponents(filters []Filter) []ComponentID {
	var ids []ComponentID
	for _, f := range filters {
		ids = append(ids, f.Components()...)
	}
	return ids
}
