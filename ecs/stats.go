package ecs

import "sort"

// StorageStats summarizes the contents of a Storage.
type StorageStats struct {
	ArchetypeCount     int
	TotalEntityCount   int
	ComponentTypeCount int
	SingletonCount     int
	ArchetypeBreakdown []ArchetypeStats
	SingletonTypes     []string
}

// ArchetypeStats describes one archetype.
type ArchetypeStats struct {
	ID             ArchetypeID
	ComponentTypes []string
	EntityCount    int
}

// CollectStats walks the storage and reports counts per archetype.
func (s *Storage) CollectStats() StorageStats {
	stats := StorageStats{
		ArchetypeCount:     len(s.archetypes),
		TotalEntityCount:   s.entities.Len(),
		ComponentTypeCount: s.registry.Len(),
		SingletonCount:     len(s.singletons),
		ArchetypeBreakdown: make([]ArchetypeStats, 0, len(s.archetypes)),
		SingletonTypes:     make([]string, 0, len(s.singletons)),
	}

	for _, arch := range s.archetypes {
		names := make([]string, 0, arch.signature.Len())
		for _, id := range arch.signature.ids {
			if layout, err := s.registry.Layout(id); err == nil {
				names = append(names, layout.Name)
			}
		}
		stats.ArchetypeBreakdown = append(stats.ArchetypeBreakdown, ArchetypeStats{
			ID:             arch.id,
			ComponentTypes: names,
			EntityCount:    arch.Len(),
		})
	}

	for t := range s.singletons {
		stats.SingletonTypes = append(stats.SingletonTypes, t.String())
	}
	sort.Strings(stats.SingletonTypes)
	return stats
}
