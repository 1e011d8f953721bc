package script

import (
	"reflect"

	"github.com/rotisserie/eris"
	lua "github.com/yuin/gopher-lua"
)

// toLua converts numbers, strings, bools and structs of them. Other kinds become nil.
func toLua(L *lua.LState, v reflect.Value) lua.LValue {
	switch v.Kind() {
	case reflect.Bool:
		return lua.LBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(v.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(v.Float())
	case reflect.String:
		return lua.LString(v.String())
	case reflect.Struct:
		t := L.NewTable()
		for i := 0; i < v.NumField(); i++ {
			f := v.Type().Field(i)
			if !f.IsExported() {
				continue
			}
			t.RawSetString(f.Name, toLua(L, v.Field(i)))
		}
		return t
	}
	return lua.LNil
}

// fromLua writes lv into the settable dst. Missing table keys leave fields untouched.
func fromLua(lv lua.LValue, dst reflect.Value) error {
	if lv == lua.LNil {
		return nil
	}
	switch dst.Kind() {
	case reflect.Bool:
		dst.SetBool(lua.LVAsBool(lv))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return eris.Errorf("expected number, got %s", lv.Type())
		}
		dst.SetInt(int64(n))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := lv.(lua.LNumber)
		if !ok || n < 0 {
			return eris.Errorf("expected unsigned number, got %s", lv.String())
		}
		dst.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return eris.Errorf("expected number, got %s", lv.Type())
		}
		dst.SetFloat(float64(n))
	case reflect.String:
		s, ok := lv.(lua.LString)
		if !ok {
			return eris.Errorf("expected string, got %s", lv.Type())
		}
		dst.SetString(string(s))
	case reflect.Struct:
		t, ok := lv.(*lua.LTable)
		if !ok {
			return eris.Errorf("expected table, got %s", lv.Type())
		}
		for i := 0; i < dst.NumField(); i++ {
			f := dst.Type().Field(i)
			if !f.IsExported() {
				continue
			}
			if err := fromLua(t.RawGetString(f.Name), dst.Field(i)); err != nil {
				return eris.Wrapf(err, "field %s", f.Name)
			}
		}
	}
	return nil
}

func stringList(lv lua.LValue) ([]string, error) {
	if lv == lua.LNil {
		return nil, nil
	}
	t, ok := lv.(*lua.LTable)
	if !ok {
		return nil, eris.Errorf("expected a list of names, got %s", lv.Type())
	}
	var out []string
	var err error
	t.ForEach(func(_, v lua.LValue) {
		s, ok := v.(lua.LString)
		if !ok {
			err = eris.Errorf("expected a component name, got %s", v.Type())
			return
		}
		out = append(out, string(s))
	})
	return out, err
}
