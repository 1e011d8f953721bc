// Package search finds entities by component set and an optional expr "where" clause.
// See https://expr-lang.org/docs/language-definition for the clause syntax; every
// component is bound under its short type name and the entity under _id and _gen.
package search

import (
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/plus3/strata/cql"
	"github.com/plus3/strata/ecs"
)

// Match selects how Find is compared with an entity's component set.
type Match string

const (
	// MatchExact matches entities holding exactly the Find components.
	MatchExact Match = "exact"
	// MatchContains matches entities holding at least the Find components.
	MatchContains Match = "contains"
	// MatchAll matches every entity. Find must be empty.
	MatchAll Match = "all"
	// MatchQuery treats Query as a component query language expression.
	MatchQuery Match = "query"
)

// Params describes a search.
type Params struct {
	Find   []string `json:"find,omitempty"`
	Match  Match    `json:"match"`
	Query  string   `json:"query,omitempty"`
	Where  string   `json:"where,omitempty"`
	Limit  uint32   `json:"limit,omitempty"` // 0 is unlimited
	Offset uint32   `json:"offset,omitempty"`
}

// Search is a compiled Params, reusable across frames.
type Search struct {
	params  Params
	filter  ecs.Filter
	program *vm.Program
	plan    *ecs.Plan
}

// Compile validates params against registry.
func Compile(params Params, registry *ecs.ComponentRegistry) (*Search, error) {
	s := &Search{params: params}

	switch params.Match {
	case MatchAll:
		if len(params.Find) > 0 {
			return nil, eris.New("find must be empty when match is 'all'")
		}
		s.filter = ecs.All()
	case MatchExact, MatchContains:
		if len(params.Find) == 0 {
			return nil, eris.Errorf("find must not be empty when match is '%s'", params.Match)
		}
		ids := make([]ecs.ComponentID, 0, len(params.Find))
		for _, name := range params.Find {
			id, err := registry.ByName(name)
			if err != nil {
				return nil, eris.Wrapf(err, "find %q", name)
			}
			ids = append(ids, id)
		}
		if params.Match == MatchExact {
			s.filter = ecs.Exact(ids...)
		} else {
			s.filter = ecs.Contains(ids...)
		}
	case MatchQuery:
		filter, err := cql.Parse(params.Query, registry)
		if err != nil {
			return nil, err
		}
		s.filter = filter
	default:
		return nil, eris.Errorf("invalid match %q: must be one of %s, %s, %s or %s",
			params.Match, MatchExact, MatchContains, MatchAll, MatchQuery)
	}

	if params.Where != "" {
		program, err := expr.Compile(params.Where, expr.AsBool())
		if err != nil {
			return nil, eris.Wrap(err, "failed to parse where clause")
		}
		s.program = program
	}
	return s, nil
}

// Run collects the matching entities in archetype order. Each result maps component names
// to copies of their values.
func (s *Search) Run(world *ecs.WorldView) ([]map[string]any, error) {
	if s.plan == nil {
		plan, err := world.Compile(ecs.QueryDesc{Filter: s.filter})
		if err != nil {
			return nil, err
		}
		s.plan = plan
	} else if s.plan.Stale() {
		s.plan.Refresh()
	}

	limit := s.params.Limit
	if limit == 0 {
		limit = math.MaxUint32
	}

	results := make([]map[string]any, 0)
	var skipped, collected uint32
	for e := range s.plan.Entities() {
		result, err := world.Components(e)
		if err != nil {
			return nil, err
		}
		result["_id"] = e.Index
		result["_gen"] = e.Generation

		if s.program != nil {
			ok, err := matches(s.program, result)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if skipped < s.params.Offset {
			skipped++
			continue
		}
		results = append(results, result)
		collected++
		if collected >= limit {
			break
		}
	}
	return results, nil
}

func matches(program *vm.Program, env map[string]any) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, eris.Wrap(err, "failed to run where clause")
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, eris.Errorf("where clause returned %T, not bool", out)
	}
	return ok, nil
}

// Run compiles and runs params once.
func Run(world *ecs.WorldView, params Params) ([]map[string]any, error) {
	s, err := Compile(params, world.Registry())
	if err != nil {
		return nil, eris.Wrap(err, "invalid search params")
	}
	return s.Run(world)
}

// EntityOf recovers the entity handle of a result.
func EntityOf(result map[string]any) (ecs.Entity, bool) {
	index, ok := result["_id"].(uint32)
	if !ok {
		return ecs.Entity{}, false
	}
	gen, ok := result["_gen"].(uint32)
	if !ok {
		return ecs.Entity{}, false
	}
	return ecs.Entity{Index: index, Generation: gen}, true
}

// Encode renders results as JSON.
func Encode(results []map[string]any) ([]byte, error) {
	data, err := json.Marshal(results)
	if err != nil {
		return nil, eris.Wrap(err, "encode search results")
	}
	return data, nil
}
