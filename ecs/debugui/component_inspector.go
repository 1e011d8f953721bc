package debugui

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/rotisserie/eris"

	"github.com/plus3/strata/ecs"
)

// ComponentInspector shows the components of the selected entity. Edits are recorded as
// AddComponent commands carrying the whole modified value.
type ComponentInspector struct {
	edits int
}

func NewComponentInspector() *ComponentInspector {
	return &ComponentInspector{}
}

// Edits returns how many edits were recorded.
func (ci *ComponentInspector) Edits() int {
	return ci.edits
}

// Set records an AddComponent command that changes one field of e's component. path names
// nested fields with dots, for example "Color.R". value is converted to the field's type.
func (ci *ComponentInspector) Set(world *ecs.WorldView, cmds *ecs.CommandBuffer, e ecs.Entity, component, path string, value any) error {
	components, err := world.Components(e)
	if err != nil {
		return err
	}
	current, ok := components[component]
	if !ok {
		return eris.Errorf("entity %s has no %s", e, component)
	}

	field, err := resolvePath(reflect.TypeOf(current), path)
	if err != nil {
		return eris.Wrap(err, component)
	}
	updated := reflect.New(reflect.TypeOf(current)).Elem()
	updated.Set(reflect.ValueOf(current))
	target := updated.FieldByIndex(field.Index)

	v := reflect.ValueOf(value)
	if !v.IsValid() || !v.Type().ConvertibleTo(field.Type) {
		return eris.Errorf("cannot assign %T to %s.%s (%s)", value, component, path, field.Type)
	}
	target.Set(v.Convert(field.Type))

	if err := cmds.AddComponent(e, updated.Interface()); err != nil {
		return err
	}
	ci.edits++
	return nil
}

func (ci *ComponentInspector) draw(world *ecs.WorldView, cmds *ecs.CommandBuffer, selected ecs.Entity) {
	if !imgui.BeginV("Component Inspector", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	if selected.IsZero() {
		imgui.Text("No entity selected")
		imgui.End()
		return
	}

	components, err := world.Components(selected)
	if err != nil {
		imgui.Text(fmt.Sprintf("Entity %s not found", selected))
		imgui.End()
		return
	}
	loc, _ := world.Location(selected)

	imgui.Text(fmt.Sprintf("Entity: %s", selected))
	imgui.Text(fmt.Sprintf("Archetype: %d", loc.Archetype))
	imgui.Separator()

	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if imgui.TreeNodeStr(name) {
			val := reflect.ValueOf(components[name])
			for _, field := range fieldsOf(val.Type()) {
				ci.renderField(world, cmds, selected, name, field.Path, val.FieldByIndex(field.Index), field.Name)
			}
			imgui.TreePop()
		}
	}

	imgui.End()
}

func (ci *ComponentInspector) renderField(world *ecs.WorldView, cmds *ecs.CommandBuffer, e ecs.Entity, component, path string, val reflect.Value, name string) {
	label := fmt.Sprintf("##%s.%s", component, path)

	set := func(value any) {
		if err := ci.Set(world, cmds, e, component, path, value); err != nil {
			imgui.Text(err.Error())
		}
	}

	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := int32(val.Int())
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(150)
		if imgui.InputInt(label, &v) {
			set(int64(v))
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v := int32(val.Uint())
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(150)
		if imgui.InputInt(label, &v) && v >= 0 {
			set(uint64(v))
		}

	case reflect.Float32, reflect.Float64:
		v := float32(val.Float())
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(150)
		if imgui.InputFloat(label, &v) {
			set(float64(v))
		}

	case reflect.Bool:
		v := val.Bool()
		if imgui.Checkbox(name, &v) {
			set(v)
		}

	case reflect.String:
		v := val.String()
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(200)
		if imgui.InputTextWithHint(label, "", &v, imgui.InputTextFlagsNone, nil) {
			set(v)
		}

	case reflect.Struct:
		if imgui.TreeNodeStr(name) {
			for _, nf := range fieldsOf(val.Type()) {
				ci.renderField(world, cmds, e, component, path+"."+nf.Name, val.FieldByIndex(nf.Index), nf.Name)
			}
			imgui.TreePop()
		}

	case reflect.Pointer:
		if val.IsNil() {
			imgui.Text(fmt.Sprintf("%s: nil", name))
		} else {
			imgui.Text(fmt.Sprintf("%s: %v", name, val.Elem().Interface()))
		}

	case reflect.Slice, reflect.Array:
		imgui.Text(fmt.Sprintf("%s: [%d items]", name, val.Len()))

	default:
		imgui.Text(fmt.Sprintf("%s: %v", name, val.Interface()))
	}
}
