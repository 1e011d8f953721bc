package ecs

import (
	"github.com/kelindar/bitmap"
)

// Access is the kind of access a query term asks for.
type Access uint8

const (
	AccessRead Access = iota
	AccessWrite
)

func (a Access) String() string {
	if a == AccessWrite {
		return "write"
	}
	return "read"
}

// AccessSet is the set of component types a system reads and writes. Writing a component
// implies reading it.
type AccessSet struct {
	reads  bitmap.Bitmap
	writes bitmap.Bitmap
}

// Add records access to id.
func (a *AccessSet) Add(id ComponentID, access Access) {
	if access == AccessWrite {
		a.writes.Set(uint32(id))
		a.reads.Remove(uint32(id))
		return
	}
	if !a.writes.Contains(uint32(id)) {
		a.reads.Set(uint32(id))
	}
}

// Merge adds every entry of other.
func (a *AccessSet) Merge(other AccessSet) {
	other.reads.Range(func(x uint32) { a.Add(ComponentID(x), AccessRead) })
	other.writes.Range(func(x uint32) { a.Add(ComponentID(x), AccessWrite) })
}

// Allows reports whether access to id is covered by the set.
func (a AccessSet) Allows(id ComponentID, access Access) bool {
	if a.writes.Contains(uint32(id)) {
		return true
	}
	return access == AccessRead && a.reads.Contains(uint32(id))
}

// Conflicts reports whether a and other cannot run concurrently: one of them writes a
// component the other reads or writes.
func (a AccessSet) Conflicts(other AccessSet) bool {
	return overlaps(a.writes, other.writes) ||
		overlaps(a.writes, other.reads) ||
		overlaps(other.writes, a.reads)
}

// Reads returns the IDs accessed read-only.
func (a AccessSet) Reads() []ComponentID {
	return bitmapIDs(a.reads)
}

// Writes returns the IDs accessed for writing.
func (a AccessSet) Writes() []ComponentID {
	return bitmapIDs(a.writes)
}

// IDs returns every ID in the set.
func (a AccessSet) IDs() []ComponentID {
	return append(a.Reads(), a.Writes()...)
}

// Empty reports whether nothing is accessed.
func (a AccessSet) Empty() bool {
	return a.reads.Count() == 0 && a.writes.Count() == 0
}

func overlaps(x, y bitmap.Bitmap) bool {
	if x.Count() == 0 || y.Count() == 0 {
		return false
	}
	intersect := x.Clone(nil)
	intersect.And(y)
	return intersect.Count() > 0
}

func bitmapIDs(b bitmap.Bitmap) []ComponentID {
	ids := make([]ComponentID, 0, b.Count())
	b.Range(func(x uint32) {
		ids = append(ids, ComponentID(x))
	})
	return ids
}
