package debugui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/plus3/strata/ecs"
)

// Sort columns shared by the viewer table.
const (
	ColumnID = iota
	ColumnComponents
	ColumnComponentCount
	ColumnEntityCount
)

type ArchetypeInfo struct {
	ID             ecs.ArchetypeID
	ComponentTypes []string
	EntityCount    int
	ComponentCount int
}

type ArchetypeViewer struct {
	archetypes    []ArchetypeInfo
	selected      *ecs.ArchetypeID
	sortColumn    int
	sortAscending bool
}

func NewArchetypeViewer() *ArchetypeViewer {
	return &ArchetypeViewer{sortColumn: ColumnEntityCount}
}

// Rows returns the archetypes in display order.
func (av *ArchetypeViewer) Rows() []ArchetypeInfo {
	return av.archetypes
}

// SortBy reorders the rows.
func (av *ArchetypeViewer) SortBy(column int, ascending bool) {
	av.sortColumn = column
	av.sortAscending = ascending
	av.sortArchetypes()
}

// Refresh reloads archetypes and their entity counts.
func (av *ArchetypeViewer) Refresh(world *ecs.WorldView) {
	stats := world.Stats()
	av.archetypes = av.archetypes[:0]
	for _, arch := range stats.ArchetypeBreakdown {
		av.archetypes = append(av.archetypes, ArchetypeInfo{
			ID:             arch.ID,
			ComponentTypes: arch.ComponentTypes,
			EntityCount:    arch.EntityCount,
			ComponentCount: len(arch.ComponentTypes),
		})
	}
	av.sortArchetypes()
}

func (av *ArchetypeViewer) draw() *ecs.ArchetypeID {
	if !imgui.BeginV("Archetype Viewer", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return nil
	}

	maxEntityCount := 0
	for _, arch := range av.archetypes {
		maxEntityCount = max(maxEntityCount, arch.EntityCount)
	}

	var clicked *ecs.ArchetypeID

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable | imgui.TableFlagsScrollY
	if imgui.BeginTableV("ArchetypeTable", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Archetype ID")
		imgui.TableSetupColumn("Components")
		imgui.TableSetupColumn("Comp Count")
		imgui.TableSetupColumn("Entity Count")
		imgui.TableHeadersRow()

		sortSpecs := imgui.TableGetSortSpecs()
		if sortSpecs.SpecsDirty() && sortSpecs.SpecsCount() > 0 {
			spec := sortSpecs.Specs()
			av.SortBy(int(spec.ColumnIndex()), spec.SortDirection() == imgui.SortDirectionAscending)
			sortSpecs.SetSpecsDirty(false)
		}

		for _, arch := range av.archetypes {
			imgui.TableNextRow()

			imgui.TableNextColumn()
			isSelected := av.selected != nil && *av.selected == arch.ID
			if imgui.SelectableBoolV(fmt.Sprintf("%d", arch.ID), isSelected, imgui.SelectableFlagsSpanAllColumns, imgui.NewVec2(0, 0)) {
				id := arch.ID
				clicked = &id
				av.selected = &id
			}

			imgui.TableNextColumn()
			imgui.Text(strings.Join(arch.ComponentTypes, ", "))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", arch.ComponentCount))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", arch.EntityCount))

			if maxEntityCount > 0 {
				barWidth := float32(arch.EntityCount) / float32(maxEntityCount) * 80.0
				imgui.SameLine()
				drawList := imgui.WindowDrawList()
				pos := imgui.CursorScreenPos()
				color := imgui.ColorU32Vec4(imgui.NewVec4(0.2, 0.6, 0.8, 0.6))
				drawList.AddRectFilled(pos, imgui.NewVec2(pos.X+barWidth, pos.Y+10), color)
			}
		}

		imgui.EndTable()
	}

	imgui.End()
	return clicked
}

func (av *ArchetypeViewer) sortArchetypes() {
	less := func(a, b ArchetypeInfo) bool {
		switch av.sortColumn {
		case ColumnID:
			return a.ID < b.ID
		case ColumnComponents:
			return strings.Join(a.ComponentTypes, ",") < strings.Join(b.ComponentTypes, ",")
		case ColumnComponentCount:
			return a.ComponentCount < b.ComponentCount
		default:
			return a.EntityCount < b.EntityCount
		}
	}
	sort.SliceStable(av.archetypes, func(i, j int) bool {
		if av.sortAscending {
			return less(av.archetypes[i], av.archetypes[j])
		}
		return less(av.archetypes[j], av.archetypes[i])
	})
}
