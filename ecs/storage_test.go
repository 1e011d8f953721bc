package ecs_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/plus3/strata/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertLocationsConsistent checks that every live entity's location points back at it.
func assertLocationsConsistent(t *testing.T, storage *ecs.Storage) {
	t.Helper()
	total := 0
	for _, arch := range storage.Archetypes() {
		for row, e := range arch.Entities() {
			loc, ok := storage.Location(e)
			require.True(t, ok, "entity %s in archetype %d is not alive", e, arch.ID())
			assert.Equal(t, arch.ID(), loc.Archetype)
			assert.Equal(t, row, loc.Row)
			total++
		}
	}
	assert.Equal(t, storage.Len(), total)
}

func TestSpawn(t *testing.T) {
	w := newTestWorld()

	e, err := w.storage.Spawn(&Position{X: 1.0, Y: 2.0}, Velocity{DX: 0.5, DY: 0.5}, Score(32))
	require.NoError(t, err)
	assert.True(t, w.storage.IsAlive(e))
	assert.Equal(t, 1, w.storage.Len())

	pos := ecs.GetComponent[Position](w.storage, e)
	require.NotNil(t, pos)
	assert.Equal(t, Position{X: 1, Y: 2}, *pos)
	assert.Equal(t, Score(32), *ecs.GetComponent[Score](w.storage, e))
	assert.Nil(t, ecs.GetComponent[Health](w.storage, e))

	t.Run("same component set shares an archetype", func(t *testing.T) {
		other, err := w.storage.Spawn(Score(1), Position{}, Velocity{})
		require.NoError(t, err)
		a, _ := w.storage.Location(e)
		b, _ := w.storage.Location(other)
		assert.Equal(t, a.Archetype, b.Archetype)
		assert.Equal(t, 1, b.Row)
	})

	t.Run("unregistered component fails and leaks nothing", func(t *testing.T) {
		before := w.storage.Entities().Cap()
		_, err := w.storage.Spawn(Position{}, struct{ Unregistered int }{})
		assert.ErrorIs(t, err, ecs.ErrUnknownComponentType)
		reused := w.storage.MustSpawn(Position{})
		assert.Equal(t, uint32(before), reused.Index, "failed spawn must release its index")
		assert.Equal(t, before+1, w.storage.Entities().Cap())
		require.NoError(t, w.storage.Despawn(reused))
	})

	t.Run("duplicate component types are rejected", func(t *testing.T) {
		_, err := w.storage.Spawn(Position{}, Position{})
		assert.ErrorIs(t, err, ecs.ErrSignatureMismatch)
	})

	t.Run("nil pointer is rejected", func(t *testing.T) {
		var p *Position
		_, err := w.storage.Spawn(p)
		assert.ErrorIs(t, err, ecs.ErrSignatureMismatch)
	})

	t.Run("no components lands in the empty archetype", func(t *testing.T) {
		empty, err := w.storage.Spawn()
		require.NoError(t, err)
		loc, ok := w.storage.Location(empty)
		require.True(t, ok)
		assert.Equal(t, 0, w.storage.Archetype(loc.Archetype).Signature().Len())
	})

	assertLocationsConsistent(t, w.storage)
}

func TestDespawn(t *testing.T) {
	w := newTestWorld()
	a := w.storage.MustSpawn(Position{X: 1})
	b := w.storage.MustSpawn(Position{X: 2})
	c := w.storage.MustSpawn(Position{X: 3})

	require.NoError(t, w.storage.Despawn(a))
	assert.False(t, w.storage.IsAlive(a))
	assert.Nil(t, ecs.GetComponent[Position](w.storage, a))

	t.Run("last row is swapped into the hole", func(t *testing.T) {
		loc, ok := w.storage.Location(c)
		require.True(t, ok)
		assert.Equal(t, 0, loc.Row)
		assert.Equal(t, float32(3), ecs.GetComponent[Position](w.storage, c).X)
		assert.Equal(t, float32(2), ecs.GetComponent[Position](w.storage, b).X)
	})

	t.Run("despawning a stale handle fails", func(t *testing.T) {
		assert.ErrorIs(t, w.storage.Despawn(a), ecs.ErrStaleEntity)
	})

	t.Run("reused index does not resurrect old handle", func(t *testing.T) {
		d := w.storage.MustSpawn(Position{X: 4})
		assert.Equal(t, a.Index, d.Index)
		assert.NotEqual(t, a.Generation, d.Generation)
		assert.False(t, w.storage.IsAlive(a))
		assert.Nil(t, ecs.GetComponent[Position](w.storage, a))
	})

	assertLocationsConsistent(t, w.storage)
}

func TestAddComponent(t *testing.T) {
	w := newTestWorld()
	e := w.storage.MustSpawn(Position{X: 1, Y: 2}, Name{Value: "hero"})
	before, _ := w.storage.Location(e)

	require.NoError(t, w.storage.AddComponent(e, Velocity{DX: 3}))

	after, _ := w.storage.Location(e)
	assert.NotEqual(t, before.Archetype, after.Archetype)
	assert.Equal(t, Position{X: 1, Y: 2}, *ecs.GetComponent[Position](w.storage, e))
	assert.Equal(t, Name{Value: "hero"}, *ecs.GetComponent[Name](w.storage, e))
	assert.Equal(t, Velocity{DX: 3}, *ecs.GetComponent[Velocity](w.storage, e))
	assert.Equal(t, 0, w.storage.Archetype(before.Archetype).Len(), "source archetype is kept but empty")

	t.Run("adding an existing type overwrites in place", func(t *testing.T) {
		require.NoError(t, w.storage.AddComponent(e, &Velocity{DX: 9}))
		loc, _ := w.storage.Location(e)
		assert.Equal(t, after, loc)
		assert.Equal(t, Velocity{DX: 9}, *ecs.GetComponent[Velocity](w.storage, e))
	})

	t.Run("stale entity", func(t *testing.T) {
		gone := w.storage.MustSpawn(Position{})
		require.NoError(t, w.storage.Despawn(gone))
		assert.ErrorIs(t, w.storage.AddComponent(gone, Velocity{}), ecs.ErrStaleEntity)
	})

	t.Run("unregistered type", func(t *testing.T) {
		assert.ErrorIs(t, w.storage.AddComponent(e, struct{ Nope int }{}), ecs.ErrUnknownComponentType)
	})

	assertLocationsConsistent(t, w.storage)
}

func TestAddThenRemoveComponent(t *testing.T) {
	w := newTestWorld()
	e := w.storage.MustSpawn(Position{X: 1, Y: 2}, Health{Current: 3, Max: 5})
	neighbour := w.storage.MustSpawn(Position{X: 7}, Health{Current: 1, Max: 1})
	before, _ := w.storage.Location(e)
	sig := w.storage.Archetype(before.Archetype).Signature()

	require.NoError(t, w.storage.AddComponent(e, Velocity{DX: 4}))
	require.NoError(t, w.storage.RemoveComponent(e, w.velocity))

	after, ok := w.storage.Location(e)
	require.True(t, ok)
	assert.Equal(t, before.Archetype, after.Archetype)
	assert.True(t, sig.Equal(w.storage.Archetype(after.Archetype).Signature()))
	assert.Equal(t, Position{X: 1, Y: 2}, *ecs.GetComponent[Position](w.storage, e))
	assert.Equal(t, Health{Current: 3, Max: 5}, *ecs.GetComponent[Health](w.storage, e))
	assert.Nil(t, ecs.GetComponent[Velocity](w.storage, e))
	assert.Equal(t, Position{X: 7}, *ecs.GetComponent[Position](w.storage, neighbour))
	assertLocationsConsistent(t, w.storage)
}

func TestRemoveComponent(t *testing.T) {
	w := newTestWorld()
	e := w.storage.MustSpawn(Position{X: 5}, Velocity{DX: 1})
	other := w.storage.MustSpawn(Position{X: 6}, Velocity{DX: 2})

	require.NoError(t, w.storage.RemoveComponent(e, w.velocity))
	assert.Nil(t, ecs.GetComponent[Velocity](w.storage, e))
	assert.Equal(t, Position{X: 5}, *ecs.GetComponent[Position](w.storage, e))
	assert.Equal(t, Velocity{DX: 2}, *ecs.GetComponent[Velocity](w.storage, other))

	t.Run("removing an absent type is a no-op", func(t *testing.T) {
		before, _ := w.storage.Location(e)
		require.NoError(t, w.storage.RemoveComponent(e, w.health))
		after, _ := w.storage.Location(e)
		assert.Equal(t, before, after)
	})

	t.Run("removing the last component keeps the entity alive", func(t *testing.T) {
		require.NoError(t, w.storage.RemoveComponent(e, w.position))
		assert.True(t, w.storage.IsAlive(e))
		loc, ok := w.storage.Location(e)
		require.True(t, ok)
		assert.Equal(t, 0, w.storage.Archetype(loc.Archetype).Signature().Len())
	})

	t.Run("unregistered id", func(t *testing.T) {
		assert.ErrorIs(t, w.storage.RemoveComponent(other, 999), ecs.ErrUnknownComponentType)
	})

	assertLocationsConsistent(t, w.storage)
}

func TestMigrate(t *testing.T) {
	w := newTestWorld()
	e := w.storage.MustSpawn(Position{X: 1}, Velocity{DX: 2}, Health{Current: 3})

	t.Run("retained values survive, dropped are discarded, added are set", func(t *testing.T) {
		to := ecs.NewSignature(w.position, w.health, w.name)
		require.NoError(t, w.storage.Migrate(e, to, []any{Name{Value: "n"}}))

		assert.Equal(t, Position{X: 1}, *ecs.GetComponent[Position](w.storage, e))
		assert.Equal(t, Health{Current: 3}, *ecs.GetComponent[Health](w.storage, e))
		assert.Equal(t, Name{Value: "n"}, *ecs.GetComponent[Name](w.storage, e))
		assert.Nil(t, ecs.GetComponent[Velocity](w.storage, e))
	})

	t.Run("missing values are rejected before any write", func(t *testing.T) {
		before, _ := w.storage.Location(e)
		archetypes := len(w.storage.Archetypes())
		err := w.storage.Migrate(e, ecs.NewSignature(w.position, w.score), nil)
		assert.ErrorIs(t, err, ecs.ErrSignatureMismatch)
		after, _ := w.storage.Location(e)
		assert.Equal(t, before, after)
		assert.Equal(t, Position{X: 1}, *ecs.GetComponent[Position](w.storage, e))
		assert.Equal(t, archetypes+1, len(w.storage.Archetypes()), "destination archetype may exist but entity did not move")
	})

	t.Run("values outside the destination are rejected", func(t *testing.T) {
		err := w.storage.Migrate(e, ecs.NewSignature(w.position), []any{Tag("x")})
		assert.ErrorIs(t, err, ecs.ErrSignatureMismatch)
		assert.Equal(t, Health{Current: 3}, *ecs.GetComponent[Health](w.storage, e))
	})

	assertLocationsConsistent(t, w.storage)
}

func TestRowPrimitives(t *testing.T) {
	w := newTestWorld()
	aid, err := w.storage.EnsureArchetype(ecs.NewSignature(w.position, w.velocity))
	require.NoError(t, err)

	again, err := w.storage.EnsureArchetype(ecs.NewSignature(w.velocity, w.position))
	require.NoError(t, err)
	assert.Equal(t, aid, again)

	_, err = w.storage.EnsureArchetype(ecs.NewSignature(999))
	assert.ErrorIs(t, err, ecs.ErrUnknownComponentType)

	registry := w.storage.Entities()
	a, b := registry.Allocate(), registry.Allocate()

	row, err := w.storage.InsertRow(aid, a, []any{Position{X: 1}, Velocity{DX: 1}})
	require.NoError(t, err)
	assert.Equal(t, 0, row)
	_, err = w.storage.InsertRow(aid, b, []any{Position{X: 2}, Velocity{DX: 2}})
	require.NoError(t, err)

	t.Run("values must cover the signature exactly", func(t *testing.T) {
		c := registry.Allocate()
		_, err := w.storage.InsertRow(aid, c, []any{Position{}})
		assert.ErrorIs(t, err, ecs.ErrSignatureMismatch)
		_, err = w.storage.InsertRow(aid, c, []any{Position{}, Health{}})
		assert.ErrorIs(t, err, ecs.ErrSignatureMismatch)
		assert.Equal(t, 2, w.storage.Archetype(aid).Len())
	})

	t.Run("an entity owns at most one row", func(t *testing.T) {
		_, err := w.storage.InsertRow(aid, a, []any{Position{X: 9}, Velocity{DX: 9}})
		assert.Error(t, err)
		assert.Equal(t, 2, w.storage.Archetype(aid).Len())
		assertLocationsConsistent(t, w.storage)
	})

	t.Run("remove row reports the moved entity", func(t *testing.T) {
		moved, ok, err := w.storage.RemoveRow(aid, 0)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, b, moved)
		loc, _ := w.storage.Location(b)
		assert.Equal(t, 0, loc.Row)

		_, ok, err = w.storage.RemoveRow(aid, 0)
		require.NoError(t, err)
		assert.False(t, ok, "removing the last row moves nothing")

		_, _, err = w.storage.RemoveRow(aid, 0)
		assert.Error(t, err)
	})
}

func TestArchetypeCapacity(t *testing.T) {
	w := newTestWorld(ecs.WithMaxRows(2))
	w.storage.MustSpawn(Position{})
	e := w.storage.MustSpawn(Position{})

	_, err := w.storage.Spawn(Position{})
	assert.ErrorIs(t, err, ecs.ErrArchetypeCapacityExceeded)

	full := w.storage.MustSpawn(Velocity{})
	w.storage.MustSpawn(Velocity{})
	err = w.storage.AddComponent(e, Velocity{})
	require.NoError(t, err, "the {Position, Velocity} archetype has room")
	err = w.storage.RemoveComponent(e, w.position)
	assert.ErrorIs(t, err, ecs.ErrArchetypeCapacityExceeded)
	assert.True(t, w.storage.Has(e, w.position), "failed migration leaves the entity in place")
	assert.True(t, w.storage.IsAlive(full))
	assertLocationsConsistent(t, w.storage)
}

func TestArchetypesAreNeverDestroyed(t *testing.T) {
	w := newTestWorld()
	e := w.storage.MustSpawn(Position{})
	loc, _ := w.storage.Location(e)
	require.NoError(t, w.storage.Despawn(e))

	version := w.storage.Version()
	f := w.storage.MustSpawn(Position{})
	again, _ := w.storage.Location(f)
	assert.Equal(t, loc.Archetype, again.Archetype)
	assert.Equal(t, version, w.storage.Version(), "reusing an archetype does not bump the version")
}

func TestSnapshot(t *testing.T) {
	w := newTestWorld()
	e := w.storage.MustSpawn(Position{X: 1, Y: 2}, Name{Value: "a"})
	w.storage.MustSpawn(Score(7))

	snap, err := w.storage.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, []string{"Position", "Name"}, snap[0].Components)
	assert.Equal(t, e, snap[0].Rows[0].Entity)
	assert.JSONEq(t, `{"X":1,"Y":2}`, string(snap[0].Rows[0].Components["Position"]))

	data, err := w.storage.MarshalSnapshot()
	require.NoError(t, err)
	var decoded []ecs.ArchetypeSnapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 2)
	assert.JSONEq(t, `7`, string(decoded[1].Rows[0].Components["Score"]))
}

func TestComponentsByName(t *testing.T) {
	w := newTestWorld()
	e := w.storage.MustSpawn(Position{X: 1}, Tag("boss"))

	byName, err := w.storage.Components(e)
	require.NoError(t, err)
	assert.Equal(t, &Position{X: 1}, byName["Position"])
	assert.Equal(t, Tag("boss"), *byName["Tag"].(*Tag))

	view := ecs.NewWorldView(w.storage)
	copies, err := view.Components(e)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1}, copies["Position"])
}
