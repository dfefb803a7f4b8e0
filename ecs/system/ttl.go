package system

import (
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
)

// TTLSystem counts TTL components down by the world step and destroys expired
// entities.
type TTLSystem struct{}

func NewTTLSystem() *TTLSystem { return &TTLSystem{} }

func (s *TTLSystem) Update(w *ecs.World) {
	if s == nil || w == nil {
		return
	}

	for _, e := range w.Query(component.TTLComponent.Kind()) {
		ttl, ok := ecs.Get(w, e, component.TTLComponent)
		if !ok {
			continue
		}
		ttl.Seconds -= w.DT()
		if ttl.Seconds <= 0 {
			w.DestroyEntity(e)
			continue
		}
		_ = ecs.Add(w, e, component.TTLComponent, ttl)
	}
}
