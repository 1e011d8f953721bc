package ecs

import (
	"reflect"
	"strings"
	"unsafe"
)

type fieldKind uint8

const (
	fieldEntity  fieldKind = iota
	fieldValue             // copied out, read access
	fieldPointer           // points into the column
	fieldScratch           // points at a per-query copy, read access
	fieldExcluded
)

type viewField struct {
	kind      fieldKind
	offset    uintptr
	typ       reflect.Type
	optional  bool
	access    Access
	term      int // index into the plan's terms, -1 for entity and excluded fields
	scratch   unsafe.Pointer
	scratchIn reflect.Value
}

// viewLayout is the parsed shape of a view struct T used by Query[T].
//
// Supported fields:
//   - *C (embedded or named): required, write access
//   - C: required, read access, the value is copied
//   - *C `ecs:"read"`: required, read access through a private copy
//   - *C `ecs:"optional"`: optional, write access, nil when absent
//   - *C `ecs:"optional,read"`: optional, read access through a private copy
//   - *C or C `ecs:"exclude"`: entities holding C are skipped, the field is left zero
//   - Entity: receives the row's entity
type viewLayout struct {
	fields []viewField
}

var entityType = reflect.TypeFor[Entity]()

func parseViewLayout[T any]() viewLayout {
	structType := reflect.TypeFor[T]()
	if structType.Kind() != reflect.Struct {
		panic("Query type parameter must be a struct")
	}

	layout := viewLayout{fields: make([]viewField, 0, structType.NumField())}
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		vf := viewField{offset: field.Offset, term: -1}

		if field.Type == entityType {
			vf.kind = fieldEntity
			layout.fields = append(layout.fields, vf)
			continue
		}

		var optional, readOnly, exclude bool
		if tag := field.Tag.Get("ecs"); tag != "" {
			if field.Anonymous {
				panic("ecs tags are not supported on embedded fields")
			}
			for _, opt := range strings.Split(tag, ",") {
				switch strings.TrimSpace(opt) {
				case "optional":
					optional = true
				case "read":
					readOnly = true
				case "exclude":
					exclude = true
				default:
					panic("invalid ecs tag value: \"" + tag + "\" (supported: optional, read, exclude)")
				}
			}
		}

		isPtr := field.Type.Kind() == reflect.Ptr
		vf.typ = field.Type
		if isPtr {
			vf.typ = field.Type.Elem()
		}

		switch {
		case exclude:
			if optional || readOnly {
				panic("ecs tag \"exclude\" cannot be combined with other options")
			}
			vf.kind = fieldExcluded
		case !isPtr:
			if optional {
				panic("optional view fields must be pointers: " + field.Name)
			}
			vf.kind = fieldValue
			vf.access = AccessRead
		case readOnly:
			vf.kind = fieldScratch
			vf.access = AccessRead
			vf.optional = optional
			vf.scratchIn = reflect.New(vf.typ)
			vf.scratch = vf.scratchIn.UnsafePointer()
		default:
			vf.kind = fieldPointer
			vf.access = AccessWrite
			vf.optional = optional
		}
		layout.fields = append(layout.fields, vf)
	}
	return layout
}

// desc builds the query description for the layout, recording each field's term index.
func (l *viewLayout) desc(registry *ComponentRegistry) (QueryDesc, error) {
	var desc QueryDesc
	type pending struct {
		field int
		id    ComponentID
	}
	var bound []pending
	for i := range l.fields {
		f := &l.fields[i]
		if f.kind == fieldEntity {
			continue
		}
		id, err := registry.Lookup(f.typ)
		if err != nil {
			return QueryDesc{}, err
		}
		switch {
		case f.kind == fieldExcluded:
			desc.Exclude = append(desc.Exclude, id)
		case f.optional:
			desc.Optional = append(desc.Optional, Term{ID: id, Access: f.access})
			bound = append(bound, pending{field: i, id: id})
		default:
			desc.Include = append(desc.Include, Term{ID: id, Access: f.access})
			bound = append(bound, pending{field: i, id: id})
		}
	}
	// Term indexes follow Plan.Compile ordering: include terms, then optional, de-duplicated.
	order := make(map[ComponentID]int)
	for _, t := range append(append([]Term{}, desc.Include...), desc.Optional...) {
		if _, ok := order[t.ID]; !ok {
			order[t.ID] = len(order)
		}
	}
	for _, b := range bound {
		l.fields[b.field].term = order[b.id]
	}
	return desc, nil
}

// fill writes row of m into the struct at dst. It reports false when a required field is
// missing, which cannot happen for rows produced by the plan itself. When detached is set,
// pointer fields receive fresh copies instead of pointers into the columns.
func (l *viewLayout) fill(dst unsafe.Pointer, m *planArchetype, row int, detached bool) bool {
	for i := range l.fields {
		f := &l.fields[i]
		fieldPtr := unsafe.Add(dst, f.offset)
		switch f.kind {
		case fieldEntity:
			*(*Entity)(fieldPtr) = m.arch.entities[row]
		case fieldExcluded:
			continue
		case fieldValue:
			pos := m.cols[f.term]
			if pos < 0 {
				return false
			}
			m.arch.columns[pos].copyOut(row, fieldPtr)
		case fieldPointer, fieldScratch:
			pos := m.cols[f.term]
			if pos < 0 {
				if !f.optional {
					return false
				}
				*(*unsafe.Pointer)(fieldPtr) = nil
				continue
			}
			col := m.arch.columns[pos]
			switch {
			case f.kind == fieldScratch:
				col.copyOut(row, f.scratch)
				*(*unsafe.Pointer)(fieldPtr) = f.scratch
			case detached:
				fresh := reflect.New(f.typ).UnsafePointer()
				col.copyOut(row, fresh)
				*(*unsafe.Pointer)(fieldPtr) = fresh
			default:
				*(*unsafe.Pointer)(fieldPtr) = col.ptr(row)
			}
		}
	}
	return true
}
