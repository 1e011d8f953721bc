package ecs_test

import (
	"testing"

	"github.com/plus3/strata/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageStats(t *testing.T) {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[int](registry)
	ecs.RegisterComponent[string](registry)
	ecs.RegisterComponent[float64](registry)
	storage := ecs.NewStorage(registry)

	stats := storage.CollectStats()
	assert.Equal(t, 0, stats.ArchetypeCount)
	assert.Equal(t, 0, stats.TotalEntityCount)
	assert.Equal(t, 0, stats.SingletonCount)
	assert.Equal(t, 3, stats.ComponentTypeCount)

	storage.MustSpawn(42, "hello")
	storage.MustSpawn(100, "world")
	storage.MustSpawn(200.0, "test")

	ecs.NewSingleton[float64](storage, 3.14)
	ecs.NewSingleton[string](storage, "singleton")

	stats = storage.CollectStats()
	assert.Equal(t, 2, stats.ArchetypeCount)
	assert.Equal(t, 3, stats.TotalEntityCount)
	assert.Equal(t, 2, stats.SingletonCount)
	assert.Equal(t, []string{"float64", "string"}, stats.SingletonTypes)

	require.Len(t, stats.ArchetypeBreakdown, 2)
	counts := map[int][]string{}
	for _, arch := range stats.ArchetypeBreakdown {
		counts[arch.EntityCount] = arch.ComponentTypes
	}
	assert.ElementsMatch(t, []string{"int", "string"}, counts[2])
	assert.ElementsMatch(t, []string{"string", "float64"}, counts[1])
}

func TestStorageStatsAfterDespawn(t *testing.T) {
	w := newTestWorld()
	a := w.storage.MustSpawn(Position{})
	w.storage.MustSpawn(Position{})
	require.NoError(t, w.storage.Despawn(a))

	stats := ecs.NewWorldView(w.storage).Stats()
	assert.Equal(t, 1, stats.TotalEntityCount)
	require.Len(t, stats.ArchetypeBreakdown, 1)
	assert.Equal(t, 1, stats.ArchetypeBreakdown[0].EntityCount)
	assert.Equal(t, []string{"Position"}, stats.ArchetypeBreakdown[0].ComponentTypes)
}
