package ecs_test

import (
	"testing"

	"github.com/plus3/strata/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuffer(t *testing.T) {
	t.Run("nothing happens before flush", func(t *testing.T) {
		w := newTestWorld()
		buf := ecs.NewCommandBuffer(w.storage)

		e, err := buf.Spawn(Position{X: 1})
		require.NoError(t, err)
		assert.False(t, w.storage.IsAlive(e))
		assert.True(t, w.storage.Entities().IsReserved(e))
		assert.Equal(t, 0, w.storage.Len())
		assert.Equal(t, 1, buf.Len())

		skipped, err := buf.Flush()
		require.NoError(t, err)
		assert.Empty(t, skipped)
		assert.True(t, w.storage.IsAlive(e))
		assert.Equal(t, float32(1), ecs.GetComponent[Position](w.storage, e).X)
		assert.Equal(t, 0, buf.Len())
	})

	t.Run("provisional handles can be targeted", func(t *testing.T) {
		w := newTestWorld()
		buf := ecs.NewCommandBuffer(w.storage)

		e, err := buf.Spawn(Position{})
		require.NoError(t, err)
		require.NoError(t, buf.AddComponent(e, Velocity{DX: 3}))
		require.NoError(t, buf.AddComponent(e, Name{Value: "later"}))
		require.NoError(t, ecs.Remove[Position](buf, e))

		_, err = buf.Flush()
		require.NoError(t, err)
		assert.False(t, w.storage.Has(e, w.position))
		assert.Equal(t, float32(3), ecs.GetComponent[Velocity](w.storage, e).DX)
		assert.Equal(t, "later", ecs.GetComponent[Name](w.storage, e).Value)
	})

	t.Run("commands apply in recorded order", func(t *testing.T) {
		w := newTestWorld()
		e := w.storage.MustSpawn(Health{Current: 1})
		buf := ecs.NewCommandBuffer(w.storage)

		require.NoError(t, buf.AddComponent(e, Health{Current: 2}))
		require.NoError(t, buf.AddComponent(e, Health{Current: 3}))
		var observed int
		buf.Defer(func() {
			observed = ecs.GetComponent[Health](w.storage, e).Current
		})
		require.NoError(t, buf.AddComponent(e, Health{Current: 4}))

		_, err := buf.Flush()
		require.NoError(t, err)
		assert.Equal(t, 3, observed)
		assert.Equal(t, 4, ecs.GetComponent[Health](w.storage, e).Current)
	})

	t.Run("values are copied when recorded", func(t *testing.T) {
		w := newTestWorld()
		buf := ecs.NewCommandBuffer(w.storage)
		pos := &Position{X: 1}
		e, err := buf.Spawn(pos)
		require.NoError(t, err)
		pos.X = 50

		_, err = buf.Flush()
		require.NoError(t, err)
		assert.Equal(t, float32(1), ecs.GetComponent[Position](w.storage, e).X)
	})

	t.Run("invalid values are rejected when recorded", func(t *testing.T) {
		w := newTestWorld()
		buf := ecs.NewCommandBuffer(w.storage)
		type Unregistered struct{}

		_, err := buf.Spawn(Unregistered{})
		assert.ErrorIs(t, err, ecs.ErrUnknownComponentType)
		_, err = buf.Spawn(Position{}, Position{})
		assert.ErrorIs(t, err, ecs.ErrSignatureMismatch)
		assert.ErrorIs(t, buf.RemoveComponent(ecs.Entity{}, 999), ecs.ErrUnknownComponentType)
		assert.Equal(t, 0, buf.Len())
	})

	t.Run("stale targets are skipped", func(t *testing.T) {
		w := newTestWorld()
		e := w.storage.MustSpawn(Position{})
		keep := w.storage.MustSpawn(Position{})
		buf := ecs.NewCommandBuffer(w.storage)

		buf.Despawn(e)
		buf.Despawn(e)
		require.NoError(t, buf.AddComponent(e, Velocity{}))
		require.NoError(t, buf.AddComponent(keep, Velocity{DX: 1}))

		skipped, err := buf.Flush()
		require.NoError(t, err)
		require.Len(t, skipped, 2)
		assert.Equal(t, ecs.CommandDespawn, skipped[0].Command.Kind)
		assert.Equal(t, ecs.CommandAddComponent, skipped[1].Command.Kind)
		for _, s := range skipped {
			assert.ErrorIs(t, s.Err, ecs.ErrStaleEntity)
		}
		assert.True(t, w.storage.Has(keep, w.velocity))
	})

	t.Run("despawn then re-add in the same buffer", func(t *testing.T) {
		w := newTestWorld()
		e := w.storage.MustSpawn(Position{})
		buf := ecs.NewCommandBuffer(w.storage)
		buf.Despawn(e)
		replacement, err := buf.Spawn(Position{X: 9})
		require.NoError(t, err)

		_, err = buf.Flush()
		require.NoError(t, err)
		assert.False(t, w.storage.IsAlive(e))
		assert.True(t, w.storage.IsAlive(replacement))
		assert.NotEqual(t, e, replacement)
	})

	t.Run("discard releases reservations", func(t *testing.T) {
		w := newTestWorld()
		buf := ecs.NewCommandBuffer(w.storage)
		e, err := buf.Spawn(Position{})
		require.NoError(t, err)
		require.NoError(t, buf.AddComponent(e, Velocity{}))

		buf.Discard()
		assert.Equal(t, 0, buf.Len())
		assert.False(t, w.storage.Entities().IsReserved(e))
		assert.False(t, w.storage.IsAlive(e))

		reused := w.storage.MustSpawn(Position{})
		assert.Equal(t, e.Index, reused.Index)
		assert.NotEqual(t, e.Generation, reused.Generation)
	})

	t.Run("capacity failure is fatal and releases the rest", func(t *testing.T) {
		w := newTestWorld(ecs.WithMaxRows(1))
		w.storage.MustSpawn(Position{})
		buf := ecs.NewCommandBuffer(w.storage)

		first, err := buf.Spawn(Position{})
		require.NoError(t, err)
		second, err := buf.Spawn(Velocity{})
		require.NoError(t, err)

		_, err = buf.Flush()
		assert.ErrorIs(t, err, ecs.ErrArchetypeCapacityExceeded)
		assert.Equal(t, 0, buf.Len())
		for _, e := range []ecs.Entity{first, second} {
			assert.False(t, w.storage.IsAlive(e))
			assert.False(t, w.storage.Entities().IsReserved(e))
		}
	})
}

func TestCommandKindString(t *testing.T) {
	assert.Equal(t, "spawn", ecs.CommandSpawn.String())
	assert.Equal(t, "despawn", ecs.CommandDespawn.String())
	assert.Equal(t, "add", ecs.CommandAddComponent.String())
	assert.Equal(t, "remove", ecs.CommandRemoveComponent.String())
	assert.Equal(t, "defer", ecs.CommandDefer.String())
}
