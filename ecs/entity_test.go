package ecs_test

import (
	"testing"

	"github.com/plus3/strata/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityRegistry(t *testing.T) {
	t.Run("zero entity is never alive", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		r.Allocate()
		assert.False(t, r.IsAlive(ecs.Entity{}))
		assert.True(t, ecs.Entity{}.IsZero())
	})

	t.Run("allocate grows indexes from zero", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		a := r.Allocate()
		b := r.Allocate()
		assert.Equal(t, ecs.Entity{Index: 0, Generation: 1}, a)
		assert.Equal(t, ecs.Entity{Index: 1, Generation: 1}, b)
		assert.Equal(t, 2, r.Len())
	})

	t.Run("free bumps generation and reuses index LIFO", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		a := r.Allocate()
		b := r.Allocate()
		require.NoError(t, r.Free(a))
		require.NoError(t, r.Free(b))

		reused := r.Allocate()
		assert.Equal(t, b.Index, reused.Index)
		assert.Equal(t, b.Generation+1, reused.Generation)
		assert.False(t, r.IsAlive(b))
		assert.True(t, r.IsAlive(reused))

		next := r.Allocate()
		assert.Equal(t, a.Index, next.Index)
		assert.Equal(t, 2, r.Cap())
	})

	t.Run("double free is stale", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		a := r.Allocate()
		require.NoError(t, r.Free(a))
		assert.ErrorIs(t, r.Free(a), ecs.ErrStaleEntity)
	})

	t.Run("old handle is stale after reuse", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		a := r.Allocate()
		require.NoError(t, r.Free(a))
		b := r.Allocate()
		assert.Equal(t, a.Index, b.Index)
		assert.ErrorIs(t, r.Free(a), ecs.ErrStaleEntity)
		assert.True(t, r.IsAlive(b))
	})

	t.Run("reservations", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		e := r.Reserve()
		assert.False(t, r.IsAlive(e))
		assert.True(t, r.IsReserved(e))
		assert.Equal(t, 0, r.Len())

		require.NoError(t, r.Activate(e))
		assert.True(t, r.IsAlive(e))
		assert.ErrorIs(t, r.Activate(e), ecs.ErrStaleEntity)

		released := r.Reserve()
		require.NoError(t, r.Release(released))
		assert.False(t, r.IsReserved(released))
		again := r.Allocate()
		assert.Equal(t, released.Index, again.Index)
		assert.Greater(t, again.Generation, released.Generation)
	})

	t.Run("unknown index is not alive", func(t *testing.T) {
		r := ecs.NewEntityRegistry()
		assert.False(t, r.IsAlive(ecs.Entity{Index: 42, Generation: 1}))
		assert.ErrorIs(t, r.Free(ecs.Entity{Index: 42, Generation: 1}), ecs.ErrStaleEntity)
	})
}

func TestEntityString(t *testing.T) {
	assert.Equal(t, "3:7", ecs.Entity{Index: 3, Generation: 7}.String())
}
