package ecs

import (
	"math"
	"reflect"
	"sync/atomic"

	"github.com/kamstrup/intmap"
	"github.com/rotisserie/eris"
)

// EntityLocation points at the row holding an entity's components.
type EntityLocation struct {
	Archetype ArchetypeID
	Row       int
}

// StorageOption configures a Storage.
type StorageOption func(*Storage)

// WithMaxRows bounds the number of rows any single archetype may hold.
func WithMaxRows(n int) StorageOption {
	return func(s *Storage) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

// WithEntityRegistry shares an existing entity registry with the storage.
func WithEntityRegistry(r *EntityRegistry) StorageOption {
	return func(s *Storage) {
		s.entities = r
	}
}

// Storage owns every archetype, the entity location table and the singleton resources.
// Structural changes (spawn, despawn, add and remove) are only made between stages, by the
// scheduler's barrier or by setup code that runs before the first tick.
type Storage struct {
	registry    *ComponentRegistry
	entities    *EntityRegistry
	archetypes  []*Archetype
	bySignature *intmap.Map[uint64, []ArchetypeID]
	locations   []EntityLocation
	singletons  map[reflect.Type]*singletonEntry
	maxRows     int
	version     atomic.Uint64
}

// NewStorage creates a new ECS storage system with the given component registry.
func NewStorage(registry *ComponentRegistry, opts ...StorageOption) *Storage {
	s := &Storage{
		registry:    registry,
		entities:    NewEntityRegistry(),
		bySignature: intmap.New[uint64, []ArchetypeID](64),
		singletons:  make(map[reflect.Type]*singletonEntry),
		maxRows:     math.MaxInt32,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the component registry.
func (s *Storage) Registry() *ComponentRegistry {
	return s.registry
}

// Entities returns the entity registry.
func (s *Storage) Entities() *EntityRegistry {
	return s.entities
}

// Version changes whenever an archetype is created. Cached plans compare it to decide
// whether to recompile.
func (s *Storage) Version() uint64 {
	return s.version.Load()
}

// Archetypes returns every archetype in creation order.
func (s *Storage) Archetypes() []*Archetype {
	return s.archetypes
}

// Archetype returns the archetype with id, or nil.
func (s *Storage) Archetype(id ArchetypeID) *Archetype {
	if int(id) >= len(s.archetypes) {
		return nil
	}
	return s.archetypes[id]
}

// Len returns the number of live entities.
func (s *Storage) Len() int {
	return s.entities.Len()
}

// EnsureArchetype returns the archetype for sig, creating it on first use.
func (s *Storage) EnsureArchetype(sig Signature) (ArchetypeID, error) {
	if err := s.registry.validate(sig.ids); err != nil {
		return 0, err
	}
	hash := sig.Hash()
	candidates, _ := s.bySignature.Get(hash)
	for _, aid := range candidates {
		if s.archetypes[aid].signature.Equal(sig) {
			return aid, nil
		}
	}

	aid := ArchetypeID(len(s.archetypes))
	s.archetypes = append(s.archetypes, newArchetype(aid, sig, s.registry))
	s.bySignature.Put(hash, append(candidates, aid))
	s.version.Add(1)
	return aid, nil
}

// FindArchetype returns the archetype for sig without creating it.
func (s *Storage) FindArchetype(sig Signature) (*Archetype, bool) {
	candidates, _ := s.bySignature.Get(sig.Hash())
	for _, aid := range candidates {
		if s.archetypes[aid].signature.Equal(sig) {
			return s.archetypes[aid], true
		}
	}
	return nil, false
}

// InsertRow appends a row owned by e to archetype aid. values must cover the archetype's
// signature exactly, one value per component type. e must not already own a row.
func (s *Storage) InsertRow(aid ArchetypeID, e Entity, values []any) (int, error) {
	arch := s.Archetype(aid)
	if arch == nil {
		return 0, eris.Errorf("archetype %d does not exist", aid)
	}
	if s.stored(e) {
		return 0, eris.Errorf("entity %s already owns a row", e)
	}
	byID, err := s.valuesByID(values)
	if err != nil {
		return 0, err
	}
	if len(byID) != arch.signature.Len() {
		return 0, eris.Wrapf(ErrSignatureMismatch, "archetype %d wants %d components, got %d", aid, arch.signature.Len(), len(byID))
	}
	for id := range byID {
		if !arch.Has(id) {
			return 0, eris.Wrapf(ErrSignatureMismatch, "component %d not in archetype %d", id, aid)
		}
	}
	if err := s.checkCapacity(arch); err != nil {
		return 0, err
	}

	row := arch.pushRow(e)
	for _, col := range arch.columns {
		col.set(row, byID[col.id()])
	}
	s.setLocation(e, EntityLocation{Archetype: aid, Row: row})
	return row, nil
}

// RemoveRow swap-removes row from archetype aid and fixes the location of the entity that
// took its place. The moved entity is returned when there was one.
func (s *Storage) RemoveRow(aid ArchetypeID, row int) (Entity, bool, error) {
	arch := s.Archetype(aid)
	if arch == nil {
		return Entity{}, false, eris.Errorf("archetype %d does not exist", aid)
	}
	if row < 0 || row >= arch.Len() {
		return Entity{}, false, eris.Errorf("row %d out of range for archetype %d", row, aid)
	}
	moved, ok := arch.swapRemove(row)
	if ok {
		s.setLocation(moved, EntityLocation{Archetype: aid, Row: row})
	}
	return moved, ok, nil
}

// Migrate moves e to the archetype for to. Retained components keep their values, added
// supplies the values of components e does not have yet, and dropped components are
// discarded. Everything is validated before the first write, so on error e is untouched.
func (s *Storage) Migrate(e Entity, to Signature, added []any) error {
	loc, err := s.location(e)
	if err != nil {
		return err
	}
	dst, err := s.EnsureArchetype(to)
	if err != nil {
		return err
	}
	return s.migrate(e, loc, dst, added)
}

func (s *Storage) migrate(e Entity, loc EntityLocation, dstID ArchetypeID, added []any) error {
	src := s.archetypes[loc.Archetype]
	dst := s.archetypes[dstID]

	byID, err := s.valuesByID(added)
	if err != nil {
		return err
	}
	for id := range byID {
		if !dst.Has(id) {
			return eris.Wrapf(ErrSignatureMismatch, "component %d not in destination archetype %d", id, dstID)
		}
	}
	for _, id := range dst.signature.ids {
		if _, ok := byID[id]; !ok && !src.Has(id) {
			return eris.Wrapf(ErrSignatureMismatch, "no value for component %d", id)
		}
	}

	if dstID == src.id {
		for id, v := range byID {
			src.column(id).set(loc.Row, v)
		}
		return nil
	}
	if err := s.checkCapacity(dst); err != nil {
		return err
	}

	row := dst.pushRow(e)
	for _, col := range dst.columns {
		cid := col.id()
		if v, ok := byID[cid]; ok {
			col.set(row, v)
			continue
		}
		src.column(cid).copyRow(col, loc.Row, row)
	}
	if moved, ok := src.swapRemove(loc.Row); ok {
		s.setLocation(moved, loc)
	}
	s.setLocation(e, EntityLocation{Archetype: dstID, Row: row})
	return nil
}

// Spawn creates a live entity holding values.
func (s *Storage) Spawn(values ...any) (Entity, error) {
	e := s.entities.Reserve()
	if err := s.SpawnReserved(e, values...); err != nil {
		_ = s.entities.Release(e)
		return Entity{}, err
	}
	return e, nil
}

// MustSpawn is Spawn that panics on error. It is meant for setup code and tests.
func (s *Storage) MustSpawn(values ...any) Entity {
	e, err := s.Spawn(values...)
	if err != nil {
		panic(err)
	}
	return e
}

// SpawnReserved inserts a reserved handle, making it alive.
func (s *Storage) SpawnReserved(e Entity, values ...any) error {
	if !s.entities.IsReserved(e) {
		return eris.Wrapf(ErrStaleEntity, "spawn %s", e)
	}
	ids := make([]ComponentID, 0, len(values))
	for _, v := range values {
		id, err := s.registry.componentOf(v)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	aid, err := s.EnsureArchetype(NewSignature(ids...))
	if err != nil {
		return err
	}
	if _, err := s.InsertRow(aid, e, values); err != nil {
		return err
	}
	return s.entities.Activate(e)
}

// Despawn removes e and all of its components.
func (s *Storage) Despawn(e Entity) error {
	loc, err := s.location(e)
	if err != nil {
		return err
	}
	if _, _, err := s.RemoveRow(loc.Archetype, loc.Row); err != nil {
		return err
	}
	return s.entities.Free(e)
}

// AddComponent adds value to e, overwriting it in place when e already has that type.
func (s *Storage) AddComponent(e Entity, value any) error {
	loc, err := s.location(e)
	if err != nil {
		return err
	}
	id, err := s.registry.componentOf(value)
	if err != nil {
		return err
	}
	src := s.archetypes[loc.Archetype]
	dst, ok := src.addEdges.Get(id)
	if !ok {
		if dst, err = s.EnsureArchetype(src.signature.With(id)); err != nil {
			return err
		}
		src.addEdges.Put(id, dst)
	}
	return s.migrate(e, loc, dst, []any{value})
}

// RemoveComponent removes id from e. Removing a component e does not have is a no-op, and
// removing the last component leaves e alive in the empty archetype.
func (s *Storage) RemoveComponent(e Entity, id ComponentID) error {
	loc, err := s.location(e)
	if err != nil {
		return err
	}
	if !s.registry.Registered(id) {
		return eris.Wrapf(ErrUnknownComponentType, "id %d", id)
	}
	src := s.archetypes[loc.Archetype]
	if !src.Has(id) {
		return nil
	}
	dst, ok := src.removeEdges.Get(id)
	if !ok {
		if dst, err = s.EnsureArchetype(src.signature.Without(id)); err != nil {
			return err
		}
		src.removeEdges.Put(id, dst)
	}
	return s.migrate(e, loc, dst, nil)
}

// Location returns where e's components live.
func (s *Storage) Location(e Entity) (EntityLocation, bool) {
	loc, err := s.location(e)
	return loc, err == nil
}

func (s *Storage) location(e Entity) (EntityLocation, error) {
	if !s.entities.IsAlive(e) || int(e.Index) >= len(s.locations) {
		return EntityLocation{}, eris.Wrapf(ErrStaleEntity, "entity %s", e)
	}
	return s.locations[e.Index], nil
}

// stored reports whether e owns the row its location points at.
func (s *Storage) stored(e Entity) bool {
	if int(e.Index) >= len(s.locations) {
		return false
	}
	loc := s.locations[e.Index]
	if int(loc.Archetype) >= len(s.archetypes) {
		return false
	}
	arch := s.archetypes[loc.Archetype]
	return loc.Row < arch.Len() && arch.entities[loc.Row] == e
}

func (s *Storage) setLocation(e Entity, loc EntityLocation) {
	for int(e.Index) >= len(s.locations) {
		s.locations = append(s.locations, EntityLocation{})
	}
	s.locations[e.Index] = loc
}

// IsAlive reports whether e is a live entity.
func (s *Storage) IsAlive(e Entity) bool {
	return s.entities.IsAlive(e)
}

// Has reports whether e is alive and holds id.
func (s *Storage) Has(e Entity, id ComponentID) bool {
	loc, err := s.location(e)
	if err != nil {
		return false
	}
	return s.archetypes[loc.Archetype].Has(id)
}

// Component returns a pointer to e's value of id.
func (s *Storage) Component(e Entity, id ComponentID) (any, error) {
	loc, err := s.location(e)
	if err != nil {
		return nil, err
	}
	v := s.archetypes[loc.Archetype].component(loc.Row, id)
	if v == nil {
		return nil, eris.Errorf("entity %s has no component %d", e, id)
	}
	return v, nil
}

// GetComponent returns a pointer to e's T, or nil if e is stale or lacks T.
func GetComponent[T any](s *Storage, e Entity) *T {
	id, err := ComponentIDOf[T](s.registry)
	if err != nil {
		return nil
	}
	v, err := s.Component(e, id)
	if err != nil {
		return nil
	}
	return v.(*T)
}

// Components returns pointers to every component e holds, keyed by component name.
func (s *Storage) Components(e Entity) (map[string]any, error) {
	return s.components(e, nil)
}

func (s *Storage) components(e Entity, keep func(ComponentID) bool) (map[string]any, error) {
	loc, err := s.location(e)
	if err != nil {
		return nil, err
	}
	arch := s.archetypes[loc.Archetype]
	out := make(map[string]any, arch.signature.Len())
	for _, col := range arch.columns {
		if keep != nil && !keep(col.id()) {
			continue
		}
		layout, err := s.registry.Layout(col.id())
		if err != nil {
			return nil, err
		}
		out[layout.Name] = col.get(loc.Row)
	}
	return out, nil
}

func (s *Storage) valuesByID(values []any) (map[ComponentID]any, error) {
	byID := make(map[ComponentID]any, len(values))
	for _, v := range values {
		id, err := s.registry.componentOf(v)
		if err != nil {
			return nil, err
		}
		if _, dup := byID[id]; dup {
			return nil, eris.Wrapf(ErrSignatureMismatch, "component %d given twice", id)
		}
		byID[id] = v
	}
	return byID, nil
}

func (s *Storage) checkCapacity(arch *Archetype) error {
	if arch.Len() >= s.maxRows {
		return eris.Wrapf(ErrArchetypeCapacityExceeded, "archetype %d holds %d rows", arch.id, arch.Len())
	}
	return nil
}
