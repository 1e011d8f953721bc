package debugui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/plus3/strata/ecs"
	"github.com/plus3/strata/search"
)

type EntityInfo struct {
	Entity         ecs.Entity
	ArchetypeID    ecs.ArchetypeID
	ComponentTypes []string
}

// EntityBrowser lists entities matching a component query and an expr where clause.
type EntityBrowser struct {
	entities  []EntityInfo
	selected  ecs.Entity
	archetype *ecs.ArchetypeID

	query, where         string
	queryText, whereText string
	compiled             *search.Search
	dirty                bool
	err                  error

	perPage       int
	page          int
	sortColumn    int
	sortAscending bool
}

func NewEntityBrowser(perPage int) *EntityBrowser {
	return &EntityBrowser{perPage: max(perPage, 1), sortAscending: true, dirty: true}
}

// SetFilter replaces the component query and where clause. Empty strings match everything.
func (eb *EntityBrowser) SetFilter(query, where string) {
	eb.query, eb.where = query, where
	eb.queryText, eb.whereText = query, where
	eb.dirty = true
	eb.page = 0
}

// SetArchetype limits the list to one archetype; nil clears the limit.
func (eb *EntityBrowser) SetArchetype(id *ecs.ArchetypeID) {
	eb.archetype = id
	eb.page = 0
}

func (eb *EntityBrowser) Select(e ecs.Entity) {
	eb.selected = e
}

func (eb *EntityBrowser) Selected() ecs.Entity {
	return eb.selected
}

// Err returns the last filter or search error.
func (eb *EntityBrowser) Err() error {
	return eb.err
}

func (eb *EntityBrowser) Entities() []EntityInfo {
	return eb.entities
}

// Page returns the entities shown on the current page.
func (eb *EntityBrowser) Page() []EntityInfo {
	start := min(eb.page*eb.perPage, len(eb.entities))
	end := min(start+eb.perPage, len(eb.entities))
	return eb.entities[start:end]
}

func (eb *EntityBrowser) Pages() int {
	return max(1, (len(eb.entities)+eb.perPage-1)/eb.perPage)
}

func (eb *EntityBrowser) NextPage() {
	eb.page = min(eb.page+1, eb.Pages()-1)
}

func (eb *EntityBrowser) PrevPage() {
	eb.page = max(eb.page-1, 0)
}

// Refresh runs the search against the current world.
func (eb *EntityBrowser) Refresh(world *ecs.WorldView) {
	if eb.dirty || eb.compiled == nil {
		params := search.Params{Match: search.MatchAll, Where: eb.where}
		if strings.TrimSpace(eb.query) != "" {
			params.Match = search.MatchQuery
			params.Query = eb.query
		}
		compiled, err := search.Compile(params, world.Registry())
		eb.dirty = false
		if err != nil {
			eb.err = err
			eb.compiled = nil
			eb.entities = eb.entities[:0]
			return
		}
		eb.compiled = compiled
	}

	results, err := eb.compiled.Run(world)
	eb.err = err
	eb.entities = eb.entities[:0]
	if err != nil {
		return
	}
	for _, result := range results {
		e, ok := search.EntityOf(result)
		if !ok {
			continue
		}
		loc, ok := world.Location(e)
		if !ok {
			continue
		}
		if eb.archetype != nil && loc.Archetype != *eb.archetype {
			continue
		}
		names := make([]string, 0, len(result))
		for name := range result {
			if !strings.HasPrefix(name, "_") {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		eb.entities = append(eb.entities, EntityInfo{Entity: e, ArchetypeID: loc.Archetype, ComponentTypes: names})
	}
	eb.sortEntities()
	eb.page = min(eb.page, eb.Pages()-1)
}

func (eb *EntityBrowser) draw() {
	if !imgui.BeginV("Entity Browser", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	imgui.InputTextWithHint("##query", "CONTAINS(Transform) & !CONTAINS(Sprite)", &eb.queryText, imgui.InputTextFlagsNone, nil)
	imgui.InputTextWithHint("##where", "Transform.X > 10", &eb.whereText, imgui.InputTextFlagsNone, nil)
	if imgui.Button("Apply") {
		eb.SetFilter(eb.queryText, eb.whereText)
	}
	imgui.SameLine()
	if imgui.Button("Clear Filter") {
		eb.SetFilter("", "")
		eb.archetype = nil
	}
	if eb.err != nil {
		imgui.Text(eb.err.Error())
	}

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable | imgui.TableFlagsScrollY
	if imgui.BeginTableV("EntityTable", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Entity")
		imgui.TableSetupColumn("Archetype ID")
		imgui.TableSetupColumn("Components")
		imgui.TableSetupColumn("Count")
		imgui.TableHeadersRow()

		sortSpecs := imgui.TableGetSortSpecs()
		if sortSpecs.SpecsDirty() && sortSpecs.SpecsCount() > 0 {
			spec := sortSpecs.Specs()
			eb.sortColumn = int(spec.ColumnIndex())
			eb.sortAscending = spec.SortDirection() == imgui.SortDirectionAscending
			eb.sortEntities()
			sortSpecs.SetSpecsDirty(false)
		}

		for _, entity := range eb.Page() {
			imgui.TableNextRow()

			imgui.TableNextColumn()
			if imgui.SelectableBoolV(entity.Entity.String(), eb.selected == entity.Entity, imgui.SelectableFlagsSpanAllColumns, imgui.NewVec2(0, 0)) {
				eb.selected = entity.Entity
			}

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", entity.ArchetypeID))

			imgui.TableNextColumn()
			imgui.Text(strings.Join(entity.ComponentTypes, ", "))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", len(entity.ComponentTypes)))
		}

		imgui.EndTable()
	}

	if len(eb.entities) > eb.perPage {
		imgui.Text(fmt.Sprintf("Page %d / %d (%d entities)", eb.page+1, eb.Pages(), len(eb.entities)))
		imgui.SameLine()
		if imgui.Button("Prev") {
			eb.PrevPage()
		}
		imgui.SameLine()
		if imgui.Button("Next") {
			eb.NextPage()
		}
	} else {
		imgui.Text(fmt.Sprintf("Total: %d entities", len(eb.entities)))
	}

	imgui.End()
}

func (eb *EntityBrowser) sortEntities() {
	less := func(a, b EntityInfo) bool {
		switch eb.sortColumn {
		case 1:
			return a.ArchetypeID < b.ArchetypeID
		case 2:
			return strings.Join(a.ComponentTypes, ",") < strings.Join(b.ComponentTypes, ",")
		case 3:
			return len(a.ComponentTypes) < len(b.ComponentTypes)
		default:
			return a.Entity.Index < b.Entity.Index
		}
	}
	sort.SliceStable(eb.entities, func(i, j int) bool {
		if eb.sortAscending {
			return less(eb.entities[i], eb.entities[j])
		}
		return less(eb.entities[j], eb.entities[i])
	})
}
