package search_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/strata/ecs"
	"github.com/plus3/strata/search"
)

type Health struct {
	HP    int
	Armor int
}

type Name struct {
	Value string
}

type Frozen struct{}

func newWorld(t *testing.T) (*ecs.WorldView, []ecs.Entity) {
	t.Helper()
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[Name](registry)
	ecs.RegisterComponent[Frozen](registry)
	storage := ecs.NewStorage(registry)

	entities := []ecs.Entity{
		storage.MustSpawn(Health{HP: 100}, Name{Value: "knight"}),
		storage.MustSpawn(Health{HP: 250, Armor: 3}, Name{Value: "ogre"}),
		storage.MustSpawn(Health{HP: 300}, Name{Value: "dragon"}, Frozen{}),
		storage.MustSpawn(Name{Value: "sign"}),
	}
	return ecs.NewWorldView(storage), entities
}

func names(results []map[string]any) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r["Name"].(Name).Value)
	}
	return out
}

func TestSearch(t *testing.T) {
	world, entities := newWorld(t)

	t.Run("contains", func(t *testing.T) {
		results, err := search.Run(world, search.Params{Find: []string{"Health"}, Match: search.MatchContains})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"knight", "ogre", "dragon"}, names(results))
	})

	t.Run("exact", func(t *testing.T) {
		results, err := search.Run(world, search.Params{Find: []string{"Name", "Health"}, Match: search.MatchExact})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"knight", "ogre"}, names(results))
	})

	t.Run("all", func(t *testing.T) {
		results, err := search.Run(world, search.Params{Match: search.MatchAll})
		require.NoError(t, err)
		assert.Len(t, results, 4)
	})

	t.Run("query language", func(t *testing.T) {
		results, err := search.Run(world, search.Params{
			Match: search.MatchQuery,
			Query: "CONTAINS(Name) & !CONTAINS(Frozen)",
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"knight", "ogre", "sign"}, names(results))
	})

	t.Run("where clause reads fields", func(t *testing.T) {
		results, err := search.Run(world, search.Params{
			Find:  []string{"Health"},
			Match: search.MatchContains,
			Where: "Health.HP > 200 && Health.Armor == 0",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"dragon"}, names(results))

		results, err = search.Run(world, search.Params{
			Match: search.MatchAll,
			Where: `_id == 1`,
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		e, ok := search.EntityOf(results[0])
		require.True(t, ok)
		assert.Equal(t, entities[1], e)
	})

	t.Run("offset and limit", func(t *testing.T) {
		all, err := search.Run(world, search.Params{Match: search.MatchAll})
		require.NoError(t, err)

		page, err := search.Run(world, search.Params{Match: search.MatchAll, Offset: 1, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, names(all[1:3]), names(page))

		page, err = search.Run(world, search.Params{Match: search.MatchAll, Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("results are copies", func(t *testing.T) {
		results, err := search.Run(world, search.Params{Find: []string{"Health"}, Match: search.MatchContains})
		require.NoError(t, err)
		results[0]["Health"] = Health{HP: -1}

		again, err := search.Run(world, search.Params{Find: []string{"Health"}, Match: search.MatchContains})
		require.NoError(t, err)
		for _, r := range again {
			assert.NotEqual(t, -1, r["Health"].(Health).HP)
		}
	})
}

func TestCompile(t *testing.T) {
	world, _ := newWorld(t)
	registry := world.Registry()

	for name, params := range map[string]search.Params{
		"find with all":     {Find: []string{"Health"}, Match: search.MatchAll},
		"empty find":        {Match: search.MatchContains},
		"unknown match":     {Find: []string{"Health"}, Match: "some"},
		"unknown component": {Find: []string{"Mana"}, Match: search.MatchExact},
		"bad where":         {Match: search.MatchAll, Where: "Health.HP >"},
		"bad query":         {Match: search.MatchQuery, Query: "CONTAINS("},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := search.Compile(params, registry)
			assert.Error(t, err)
		})
	}

	_, err := search.Compile(search.Params{Find: []string{"Mana"}, Match: search.MatchExact}, registry)
	assert.ErrorIs(t, err, ecs.ErrUnknownComponentType)
}

func TestSearchReuse(t *testing.T) {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[Name](registry)
	ecs.RegisterComponent[Frozen](registry)
	storage := ecs.NewStorage(registry)
	world := ecs.NewWorldView(storage)

	s, err := search.Compile(search.Params{Find: []string{"Health"}, Match: search.MatchContains}, registry)
	require.NoError(t, err)

	storage.MustSpawn(Health{HP: 1})
	results, err := s.Run(world)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	storage.MustSpawn(Health{HP: 2}, Frozen{})
	results, err = s.Run(world)
	require.NoError(t, err)
	assert.Len(t, results, 2, "archetypes created between runs are picked up")
}

func TestWhereRuntimeErrors(t *testing.T) {
	world, _ := newWorld(t)
	_, err := search.Run(world, search.Params{Match: search.MatchAll, Where: "Health.HP > 0"})
	assert.Error(t, err, "entities without Health leave the field unbound")
}

func TestEncode(t *testing.T) {
	world, _ := newWorld(t)
	results, err := search.Run(world, search.Params{Find: []string{"Name", "Health"}, Match: search.MatchExact, Limit: 1})
	require.NoError(t, err)

	data, err := search.Encode(results)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "knight", decoded[0]["Name"].(map[string]any)["Value"])
	assert.Equal(t, float64(0), decoded[0]["_id"])
}
