package ecs

import (
	"slices"
	"strings"

	"github.com/kelindar/bitmap"
)

// Signature is the sorted, de-duplicated set of component types held by an archetype.
type Signature struct {
	ids  []ComponentID
	mask bitmap.Bitmap
}

// NewSignature builds a signature from ids in any order.
func NewSignature(ids ...ComponentID) Signature {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var mask bitmap.Bitmap
	for _, id := range sorted {
		mask.Set(uint32(id))
	}
	return Signature{ids: sorted, mask: mask}
}

// IDs returns the sorted component IDs. The slice must not be modified.
func (s Signature) IDs() []ComponentID {
	return s.ids
}

// Len returns the number of component types.
func (s Signature) Len() int {
	return len(s.ids)
}

// Has reports whether id is part of the signature.
func (s Signature) Has(id ComponentID) bool {
	return s.mask.Contains(uint32(id))
}

// Mask returns the bitmap of component IDs.
func (s Signature) Mask() bitmap.Bitmap {
	return s.mask
}

// Contains reports whether every id in other is in s.
func (s Signature) Contains(other Signature) bool {
	if other.Len() > s.Len() {
		return false
	}
	for _, id := range other.ids {
		if !s.mask.Contains(uint32(id)) {
			return false
		}
	}
	return true
}

// Equal reports whether both signatures hold the same set.
func (s Signature) Equal(other Signature) bool {
	return slices.Equal(s.ids, other.ids)
}

// With returns a signature with id added.
func (s Signature) With(id ComponentID) Signature {
	if s.Has(id) {
		return s
	}
	return NewSignature(append(slices.Clone(s.ids), id)...)
}

// Without returns a signature with id removed.
func (s Signature) Without(id ComponentID) Signature {
	if !s.Has(id) {
		return s
	}
	ids := make([]ComponentID, 0, len(s.ids)-1)
	for _, c := range s.ids {
		if c != id {
			ids = append(ids, c)
		}
	}
	return NewSignature(ids...)
}

// Hash returns the FNV-1a hash of the sorted IDs.
func (s Signature) Hash() uint64 {
	const (
		offset uint64 = 14695981039346656037
		prime  uint64 = 1099511628211
	)
	h := offset
	for _, id := range s.ids {
		v := uint32(id)
		for i := 0; i < 4; i++ {
			h ^= uint64(byte(v >> (8 * i)))
			h *= prime
		}
	}
	return h
}

// Describe renders the signature with component names from r.
func (s Signature) Describe(r *ComponentRegistry) string {
	names := make([]string, 0, len(s.ids))
	for _, id := range s.ids {
		if layout, err := r.Layout(id); err == nil {
			names = append(names, layout.Name)
		}
	}
	return "[" + strings.Join(names, ", ") + "]"
}
