package ecs

import (
	"reflect"
	"unsafe"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// abstractColumn is the type-erased view of a column used when the concrete component
// type is only known through its ComponentID.
type abstractColumn interface {
	id() ComponentID
	len() int
	extend()
	set(row int, value any) bool
	get(row int) any
	clone(row int) any
	ptr(row int) unsafe.Pointer
	copyOut(row int, dst unsafe.Pointer)
	remove(row int)
	copyRow(dst abstractColumn, srcRow, dstRow int)
	marshalRow(row int) ([]byte, error)
}

const initialColumnCapacity = 16

// column stores the values of one component type for every row of an archetype, densely
// packed. Its length always equals the archetype's entity count.
type column[T any] struct {
	cid        ComponentID
	components []T
}

func newColumn[T any](id ComponentID) *column[T] {
	return &column[T]{
		cid:        id,
		components: make([]T, 0, initialColumnCapacity),
	}
}

func (c *column[T]) id() ComponentID {
	return c.cid
}

func (c *column[T]) len() int {
	return len(c.components)
}

// extend appends a zero value row.
func (c *column[T]) extend() {
	var zero T
	c.components = append(c.components, zero)
}

// set accepts either T or *T.
func (c *column[T]) set(row int, value any) bool {
	switch v := value.(type) {
	case T:
		c.components[row] = v
	case *T:
		if v == nil {
			return false
		}
		c.components[row] = *v
	default:
		return false
	}
	return true
}

func (c *column[T]) get(row int) any {
	return &c.components[row]
}

// clone returns a pointer to a copy of the value at row.
func (c *column[T]) clone(row int) any {
	v := c.components[row]
	return &v
}

func (c *column[T]) ptr(row int) unsafe.Pointer {
	return unsafe.Pointer(&c.components[row])
}

func (c *column[T]) copyOut(row int, dst unsafe.Pointer) {
	*(*T)(dst) = c.components[row]
}

// remove swaps the last value into row and truncates. The vacated slot is zeroed so the
// dropped value does not keep references alive.
func (c *column[T]) remove(row int) {
	last := len(c.components) - 1
	c.components[row] = c.components[last]
	var zero T
	c.components[last] = zero
	c.components = c.components[:last]
}

func (c *column[T]) copyRow(dst abstractColumn, srcRow, dstRow int) {
	dst.(*column[T]).components[dstRow] = c.components[srcRow]
}

func (c *column[T]) marshalRow(row int) ([]byte, error) {
	data, err := json.Marshal(c.components[row])
	if err != nil {
		return nil, eris.Wrapf(err, "failed to serialize %s at row %d", reflect.TypeFor[T](), row)
	}
	return data, nil
}
