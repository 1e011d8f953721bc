package debugui

import (
	"reflect"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// componentField is an exported field of a component type, addressed by its dotted path
// from the component root.
type componentField struct {
	Name  string
	Path  string
	Index []int
	Type  reflect.Type
}

// fieldCache memoizes the direct exported fields of each struct type.
var fieldCache sync.Map // reflect.Type -> []componentField

func fieldsOf(t reflect.Type) []componentField {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]componentField)
	}
	var fields []componentField
	if t.Kind() == reflect.Struct {
		for _, sf := range reflect.VisibleFields(t) {
			if !sf.IsExported() || sf.Anonymous || len(sf.Index) != 1 {
				continue
			}
			fields = append(fields, componentField{
				Name:  sf.Name,
				Path:  sf.Name,
				Index: sf.Index,
				Type:  sf.Type,
			})
		}
	}
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]componentField)
}

// resolvePath walks a dotted path such as "Color.R" through nested structs.
func resolvePath(t reflect.Type, path string) (componentField, error) {
	var out componentField
	cur := t
	for _, name := range strings.Split(path, ".") {
		if cur.Kind() != reflect.Struct {
			return out, eris.Errorf("%s: %s is not a struct", path, cur)
		}
		found := false
		for _, f := range fieldsOf(cur) {
			if f.Name == name {
				out.Index = append(out.Index, f.Index...)
				out.Type = f.Type
				cur = f.Type
				found = true
				break
			}
		}
		if !found {
			return out, eris.Errorf("%s has no exported field %s", t, path)
		}
	}
	out.Name = path[strings.LastIndexByte(path, '.')+1:]
	out.Path = path
	return out, nil
}
