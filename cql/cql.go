// Package cql parses the component query language into ecs filters.
//
//	CONTAINS(Position, Velocity) & !EXACT(Position) | ALL()
//
// Operators bind left to right with equal precedence; parentheses group.
package cql

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/rotisserie/eris"

	"github.com/plus3/strata/ecs"
)

type operator int

const (
	opAnd operator = iota
	opOr
)

var operatorMap = map[string]operator{"&": opAnd, "|": opOr}

func (o *operator) Capture(s []string) error {
	op, ok := operatorMap[s[0]]
	if !ok {
		return eris.Errorf("unknown operator %q", s[0])
	}
	*o = op
	return nil
}

func (o operator) String() string {
	if o == opOr {
		return "|"
	}
	return "&"
}

type component struct {
	Name string `@Ident (@"." @Ident)*`
}

type notExpr struct {
	SubExpression *value `"!" @@`
}

type exactExpr struct {
	Components []*component `"EXACT" "(" @@ ("," @@)* ")"`
}

type containsExpr struct {
	Components []*component `"CONTAINS" "(" @@ ("," @@)* ")"`
}

type allExpr struct {
	All bool `@"ALL" "(" ")"`
}

type value struct {
	All           *allExpr      `@@`
	Exact         *exactExpr    `| @@`
	Contains      *containsExpr `| @@`
	Not           *notExpr      `| @@`
	Subexpression *term         `| "(" @@ ")"`
}

type factor struct {
	Base *value `@@`
}

type opFactor struct {
	Operator operator `@("&" | "|")`
	Factor   *factor  `@@`
}

type term struct {
	Left  *factor     `@@`
	Right []*opFactor `@@*`
}

func names(components []*component) string {
	out := make([]string, len(components))
	for i, c := range components {
		out[i] = c.Name
	}
	return strings.Join(out, ", ")
}

func (v *value) String() string {
	switch {
	case v.All != nil:
		return "ALL()"
	case v.Exact != nil:
		return "EXACT(" + names(v.Exact.Components) + ")"
	case v.Contains != nil:
		return "CONTAINS(" + names(v.Contains.Components) + ")"
	case v.Not != nil:
		return "!" + v.Not.SubExpression.String()
	case v.Subexpression != nil:
		return "(" + v.Subexpression.String() + ")"
	}
	return ""
}

func (f *factor) String() string {
	return f.Base.String()
}

func (o *opFactor) String() string {
	return fmt.Sprintf("%s %s", o.Operator, o.Factor)
}

func (t *term) String() string {
	out := []string{t.Left.String()}
	for _, r := range t.Right {
		out = append(out, r.String())
	}
	return strings.Join(out, " ")
}

var parser = participle.MustBuild[term]()

// Resolver maps a component name from a query to its id.
type Resolver func(name string) (ecs.ComponentID, error)

// Parse compiles text into a filter, resolving names through registry.
func Parse(text string, registry *ecs.ComponentRegistry) (ecs.Filter, error) {
	return ParseWith(text, registry.ByName)
}

// ParseWith compiles text into a filter with a custom name resolver.
func ParseWith(text string, resolve Resolver) (ecs.Filter, error) {
	t, err := parser.ParseString("", text)
	if err != nil {
		return nil, eris.Wrap(err, "parse query")
	}
	return termToFilter(t, resolve)
}

// Normalize returns the canonical spelling of a query.
func Normalize(text string) (string, error) {
	t, err := parser.ParseString("", text)
	if err != nil {
		return "", eris.Wrap(err, "parse query")
	}
	return t.String(), nil
}

func termToFilter(t *term, resolve Resolver) (ecs.Filter, error) {
	if t.Left == nil {
		return nil, eris.New("empty expression")
	}
	acc, err := valueToFilter(t.Left.Base, resolve)
	if err != nil {
		return nil, err
	}
	for _, right := range t.Right {
		next, err := valueToFilter(right.Factor.Base, resolve)
		if err != nil {
			return nil, err
		}
		switch right.Operator {
		case opAnd:
			acc = ecs.And(acc, next)
		case opOr:
			acc = ecs.Or(acc, next)
		}
	}
	return acc, nil
}

func resolveAll(components []*component, resolve Resolver) ([]ecs.ComponentID, error) {
	ids := make([]ecs.ComponentID, 0, len(components))
	for _, c := range components {
		id, err := resolve(c.Name)
		if err != nil {
			return nil, eris.Wrapf(err, "component %q", c.Name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func valueToFilter(v *value, resolve Resolver) (ecs.Filter, error) {
	switch {
	case v.All != nil:
		return ecs.All(), nil
	case v.Exact != nil:
		ids, err := resolveAll(v.Exact.Components, resolve)
		if err != nil {
			return nil, err
		}
		return ecs.Exact(ids...), nil
	case v.Contains != nil:
		ids, err := resolveAll(v.Contains.Components, resolve)
		if err != nil {
			return nil, err
		}
		return ecs.Contains(ids...), nil
	case v.Not != nil:
		inner, err := valueToFilter(v.Not.SubExpression, resolve)
		if err != nil {
			return nil, err
		}
		return ecs.Not(inner), nil
	case v.Subexpression != nil:
		return termToFilter(v.Subexpression, resolve)
	}
	return nil, eris.New("empty value")
}
