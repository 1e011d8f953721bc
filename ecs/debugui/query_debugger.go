package debugui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/plus3/strata/cql"
	"github.com/plus3/strata/ecs"
)

type QueryResult struct {
	Archetypes []ArchetypeInfo
	Entities   int
}

// QueryDebugger evaluates a component query against the world. The query can be typed or
// built by ticking component types, which produces CONTAINS(...).
type QueryDebugger struct {
	text           string
	input          string
	selected       map[string]bool
	componentTypes []string
	result         QueryResult
	err            error
}

func NewQueryDebugger() *QueryDebugger {
	return &QueryDebugger{selected: make(map[string]bool)}
}

// SetQuery replaces the query text.
func (qd *QueryDebugger) SetQuery(text string) {
	qd.text = text
	qd.input = text
}

func (qd *QueryDebugger) Query() string {
	return qd.text
}

// Toggle selects or clears a component type and rewrites the query from the selection.
func (qd *QueryDebugger) Toggle(name string, on bool) {
	if on {
		qd.selected[name] = true
	} else {
		delete(qd.selected, name)
	}
	names := make([]string, 0, len(qd.selected))
	for n := range qd.selected {
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) == 0 {
		qd.SetQuery("")
		return
	}
	qd.SetQuery("CONTAINS(" + strings.Join(names, ", ") + ")")
}

func (qd *QueryDebugger) Result() (QueryResult, error) {
	return qd.result, qd.err
}

// Refresh re-evaluates the query.
func (qd *QueryDebugger) Refresh(world *ecs.WorldView) {
	qd.componentTypes = qd.componentTypes[:0]
	for _, layout := range world.Registry().Layouts() {
		qd.componentTypes = append(qd.componentTypes, layout.Name)
	}
	sort.Strings(qd.componentTypes)

	qd.result = QueryResult{}
	qd.err = nil
	if strings.TrimSpace(qd.text) == "" {
		return
	}

	filter, err := cql.Parse(qd.text, world.Registry())
	if err != nil {
		qd.err = err
		return
	}
	plan, err := world.Compile(ecs.QueryDesc{Filter: filter})
	if err != nil {
		qd.err = err
		return
	}

	matched := make(map[ecs.ArchetypeID]bool)
	for _, id := range plan.Archetypes() {
		matched[id] = true
	}
	for _, arch := range world.Stats().ArchetypeBreakdown {
		if !matched[arch.ID] {
			continue
		}
		qd.result.Archetypes = append(qd.result.Archetypes, ArchetypeInfo{
			ID:             arch.ID,
			ComponentTypes: arch.ComponentTypes,
			EntityCount:    arch.EntityCount,
			ComponentCount: len(arch.ComponentTypes),
		})
		qd.result.Entities += arch.EntityCount
	}
}

func (qd *QueryDebugger) draw() {
	if !imgui.BeginV("Query Debugger", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	imgui.InputTextWithHint("##cql", "CONTAINS(Transform, Sprite)", &qd.input, imgui.InputTextFlagsNone, nil)
	imgui.SameLine()
	if imgui.Button("Run") {
		qd.text = qd.input
	}

	imgui.Text("Select Component Types:")
	imgui.Separator()

	if imgui.Button("Clear All") {
		qd.selected = make(map[string]bool)
		qd.SetQuery("")
	}

	for _, compType := range qd.componentTypes {
		selected := qd.selected[compType]
		if imgui.Checkbox(compType, &selected) {
			qd.Toggle(compType, selected)
		}
	}

	imgui.Separator()

	if qd.err != nil {
		imgui.Text(qd.err.Error())
		imgui.End()
		return
	}
	if qd.text == "" {
		imgui.Text("No query")
		imgui.End()
		return
	}

	imgui.Text(fmt.Sprintf("Matching Archetypes: %d", len(qd.result.Archetypes)))
	imgui.Text(fmt.Sprintf("Matching Entities: %d", qd.result.Entities))

	if imgui.TreeNodeStr("Archetype Details") {
		const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
		if imgui.BeginTableV("QueryArchTable", 3, tableFlags, imgui.NewVec2(0, 0), 0) {
			imgui.TableSetupColumn("Archetype ID")
			imgui.TableSetupColumn("All Components")
			imgui.TableSetupColumn("Entity Count")
			imgui.TableHeadersRow()

			for _, arch := range qd.result.Archetypes {
				imgui.TableNextRow()

				imgui.TableSetColumnIndex(0)
				imgui.Text(fmt.Sprintf("%d", arch.ID))

				imgui.TableSetColumnIndex(1)
				imgui.Text(strings.Join(arch.ComponentTypes, ", "))

				imgui.TableSetColumnIndex(2)
				imgui.Text(fmt.Sprintf("%d", arch.EntityCount))
			}

			imgui.EndTable()
		}
		imgui.TreePop()
	}

	imgui.End()
}
