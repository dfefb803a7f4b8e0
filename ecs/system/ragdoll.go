package system

import (
	"github.com/google/uuid"
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
	"github.com/milk9111/ragdoll/rig"
	"github.com/milk9111/ragdoll/strength"
	"go.uber.org/zap"
)

// EventRagdollState is the Event.Type of a RagdollStateEvent.
const EventRagdollState = "ragdoll_state"

// RagdollStateEvent reports a joint switching between driven and loosened.
type RagdollStateEvent struct {
	Entity   ecs.Entity
	Rig      uuid.UUID
	Joint    string
	From     strength.State
	To       strength.State
	Strength float64
	Tick     uint64
}

// RagdollSystem ticks every rig once per world step and closes rigs whose
// entities are gone.
type RagdollSystem struct {
	rigs   map[ecs.Entity]*rig.Rig
	logger *zap.Logger
}

func NewRagdollSystem(logger *zap.Logger) *RagdollSystem {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RagdollSystem{
		rigs:   make(map[ecs.Entity]*rig.Rig),
		logger: logger.Named("ragdolls"),
	}
}

func (rs *RagdollSystem) Update(w *ecs.World) {
	if rs == nil || w == nil {
		return
	}
	rs.cleanup(w)

	for _, e := range w.Query(component.RagdollComponent.Kind()) {
		comp, ok := ecs.Get(w, e, component.RagdollComponent)
		if !ok || comp.Rig == nil || comp.Rig.Closed() {
			continue
		}
		rs.rigs[e] = comp.Rig

		if err := comp.Rig.Tick(w.DT()); err != nil {
			rs.logger.Error("rig tick failed", zap.Stringer("entity", e), zap.Error(err))
			continue
		}
		for _, t := range comp.Rig.Transitions() {
			w.Events().Push(ecs.Event{Type: EventRagdollState, Data: RagdollStateEvent{
				Entity:   e,
				Rig:      comp.Rig.ID(),
				Joint:    t.Name,
				From:     t.From,
				To:       t.To,
				Strength: t.Strength,
				Tick:     w.Tick(),
			}})
		}

		if ecs.Has(w, e, component.TransformComponent) {
			root := comp.Rig.SlavePose()[0]
			_ = ecs.Add(w, e, component.TransformComponent, component.Transform{
				X:        root.Position[0],
				Y:        root.Position[1],
				Rotation: root.Rotation,
			})
		}
	}
}

func (rs *RagdollSystem) cleanup(w *ecs.World) {
	for e, r := range rs.rigs {
		comp, ok := ecs.Get(w, e, component.RagdollComponent)
		if ok && comp.Rig == r {
			continue
		}
		r.Close()
		delete(rs.rigs, e)
	}
}

// Close closes every rig still tracked.
func (rs *RagdollSystem) Close() {
	for e, r := range rs.rigs {
		r.Close()
		delete(rs.rigs, e)
	}
}

// RagdollEvents filters the current tick's ragdoll state events.
func RagdollEvents(w *ecs.World) []RagdollStateEvent {
	var out []RagdollStateEvent
	for _, evt := range w.Events().Peek() {
		if evt.Type != EventRagdollState {
			continue
		}
		if data, ok := evt.Data.(RagdollStateEvent); ok {
			out = append(out, data)
		}
	}
	return out
}
