package cql

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/plus3/strata/ecs"
)

type Position struct{ X, Y float64 }
type Velocity struct{ DX, DY float64 }
type Health struct{ Current int }

func TestParser(t *testing.T) {
	parsed, err := parser.ParseString("", "!(EXACT(a, b) & EXACT(a)) | CONTAINS(b)")
	assert.NilError(t, err)

	expected := term{
		Left: &factor{Base: &value{
			Not: &notExpr{SubExpression: &value{
				Subexpression: &term{
					Left: &factor{Base: &value{
						Exact: &exactExpr{Components: []*component{{Name: "a"}, {Name: "b"}}},
					}},
					Right: []*opFactor{{
						Operator: opAnd,
						Factor: &factor{Base: &value{
							Exact: &exactExpr{Components: []*component{{Name: "a"}}},
						}},
					}},
				},
			}},
		}},
		Right: []*opFactor{{
			Operator: opOr,
			Factor: &factor{Base: &value{
				Contains: &containsExpr{Components: []*component{{Name: "b"}}},
			}},
		}},
	}
	assert.DeepEqual(t, *parsed, expected)
	assert.Equal(t, parsed.String(), "!(EXACT(a, b) & EXACT(a)) | CONTAINS(b)")
}

func TestQualifiedNames(t *testing.T) {
	parsed, err := parser.ParseString("", "CONTAINS(render.Transform, Sprite)")
	assert.NilError(t, err)
	assert.Equal(t, parsed.Left.Base.Contains.Components[0].Name, "render.Transform")
	assert.Equal(t, parsed.Left.Base.Contains.Components[1].Name, "Sprite")

	parsed, err = parser.ParseString("", "EXACT(Sprite, render.Transform)")
	assert.NilError(t, err)
	assert.Equal(t, parsed.Left.Base.Exact.Components[1].Name, "render.Transform")
	assert.Equal(t, parsed.String(), "EXACT(Sprite, render.Transform)")
}

func TestParse(t *testing.T) {
	registry := ecs.NewComponentRegistry()
	pos := ecs.RegisterComponent[Position](registry)
	vel := ecs.RegisterComponent[Velocity](registry)
	health := ecs.RegisterComponent[Health](registry)

	signatures := []ecs.Signature{
		ecs.NewSignature(pos),
		ecs.NewSignature(pos, vel),
		ecs.NewSignature(pos, vel, health),
	}

	cases := []struct {
		query string
		want  []bool
	}{
		{"ALL()", []bool{true, true, true}},
		{"CONTAINS(Position, Velocity)", []bool{false, true, true}},
		{"EXACT(Velocity, Position)", []bool{false, true, false}},
		{"CONTAINS(Position) & !CONTAINS(Health)", []bool{true, true, false}},
		{"EXACT(Position) | CONTAINS(Health)", []bool{true, false, true}},
		{"!(CONTAINS(Velocity) & !CONTAINS(Health))", []bool{true, false, true}},
		{"CONTAINS(cql.Health)", []bool{false, false, true}},
		{"EXACT(cql.Position, cql.Velocity)", []bool{false, true, false}},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			filter, err := Parse(tc.query, registry)
			assert.NilError(t, err)
			for i, sig := range signatures {
				assert.Equal(t, filter.Matches(sig), tc.want[i], "signature %v", sig.IDs())
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)

	_, err := Parse("CONTAINS(Missing)", registry)
	assert.ErrorIs(t, err, ecs.ErrUnknownComponentType)
	assert.ErrorContains(t, err, "Missing")

	for _, bad := range []string{"", "CONTAINS()", "EXACT(Position", "CONTAINS(Position) &", "SOME(Position)"} {
		_, err := Parse(bad, registry)
		assert.Assert(t, err != nil, "query %q", bad)
	}
}

func TestParseWith(t *testing.T) {
	calls := map[string]int{}
	resolve := func(name string) (ecs.ComponentID, error) {
		calls[name]++
		return ecs.ComponentID(len(name)), nil
	}
	filter, err := ParseWith("CONTAINS(ab) | EXACT(abc, ab)", resolve)
	assert.NilError(t, err)
	assert.DeepEqual(t, calls, map[string]int{"ab": 2, "abc": 1})
	assert.Assert(t, filter.Matches(ecs.NewSignature(2, 3)))
	assert.Assert(t, !filter.Matches(ecs.NewSignature(3)))
}

func TestNormalize(t *testing.T) {
	out, err := Normalize("CONTAINS( a ,b )&!EXACT(c)")
	assert.NilError(t, err)
	assert.Equal(t, out, "CONTAINS(a, b) & !EXACT(c)")
}
