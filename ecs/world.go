package ecs

import (
	"fmt"

	"github.com/milk9111/ragdoll/ecs/component"
)

// DefaultTimestep is the fixed simulation step in seconds.
const DefaultTimestep = 1.0 / 60.0

// World owns entities, their components and the fixed simulation clock.
type World struct {
	entities entityStore
	stores   map[component.ComponentID]*SparseSet
	events   EventQueue

	dt   float64
	tick uint64
	time float64
}

// NewWorld creates an empty world stepping at dt seconds. A non-positive dt
// selects DefaultTimestep.
func NewWorld(dt float64) *World {
	if dt <= 0 {
		dt = DefaultTimestep
	}
	return &World{
		stores: make(map[component.ComponentID]*SparseSet),
		dt:     dt,
	}
}

func (w *World) CreateEntity() Entity {
	return w.entities.create()
}

// DestroyEntity kills e and drops all of its components. It reports false for
// an entity that was already dead.
func (w *World) DestroyEntity(e Entity) bool {
	if !w.entities.destroy(e) {
		return false
	}
	for _, s := range w.stores {
		if s.Has(e) {
			s.Remove(e)
		}
	}
	return true
}

func (w *World) IsAlive(e Entity) bool {
	return w != nil && w.entities.isAlive(e)
}

// Entities lists every live entity in slot order.
func (w *World) Entities() []Entity {
	out := make([]Entity, 0, w.entities.count)
	w.entities.each(func(e Entity) { out = append(out, e) })
	return out
}

func (w *World) store(id component.ComponentID, create bool) *SparseSet {
	s, ok := w.stores[id]
	if !ok && create {
		s = &SparseSet{}
		w.stores[id] = s
	}
	return s
}

func (w *World) AddComponent(e Entity, kind component.Kind, value any) error {
	if !w.IsAlive(e) {
		return fmt.Errorf("%w: %s", component.ErrEntityNotAlive, e)
	}
	if kind == nil || kind.ID() == 0 {
		return component.ErrInvalidComponentKind
	}
	if value == nil {
		return component.ErrNilComponent
	}
	w.store(kind.ID(), true).Set(e, value)
	return nil
}

func (w *World) RemoveComponent(e Entity, kind component.Kind) bool {
	if !w.IsAlive(e) {
		return false
	}
	s := w.store(kind.ID(), false)
	if !s.Has(e) {
		return false
	}
	return s.Remove(e)
}

func (w *World) HasComponent(e Entity, kind component.Kind) bool {
	return w.IsAlive(e) && w.store(kind.ID(), false).Has(e)
}

func (w *World) GetComponent(e Entity, kind component.Kind) (any, bool) {
	if !w.IsAlive(e) {
		return nil, false
	}
	return w.store(kind.ID(), false).Get(e)
}

// Events returns the queue for the current tick.
func (w *World) Events() *EventQueue {
	if w == nil {
		return nil
	}
	return &w.events
}

// DT is the fixed step in seconds.
func (w *World) DT() float64 {
	return w.dt
}

func (w *World) SetDT(dt float64) {
	if dt > 0 {
		w.dt = dt
	}
}

// Tick counts completed scheduler updates.
func (w *World) Tick() uint64 {
	return w.tick
}

// Time is simulated seconds since the world was created.
func (w *World) Time() float64 {
	return w.time
}

// advance moves the clock forward one step and clears last tick's events.
func (w *World) advance() {
	w.tick++
	w.time += w.dt
	w.events.flush()
}
