package entity

import (
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
	"github.com/milk9111/ragdoll/prefabs"
)

func BuildGround(w *ecs.World, spec prefabs.GroundSpec) (ecs.Entity, error) {
	e := w.CreateEntity()
	seg := component.Segment{
		AX:        spec.From.X,
		AY:        spec.From.Y,
		BX:        spec.To.X,
		BY:        spec.To.Y,
		Thickness: spec.Thickness,
		Friction:  spec.Friction,
	}
	if err := ecs.Add(w, e, component.SegmentComponent, seg); err != nil {
		w.DestroyEntity(e)
		return 0, err
	}
	if spec.Layer != "" {
		if err := ecs.Add(w, e, component.CollisionLayerComponent, component.CollisionLayer{Category: spec.Layer}); err != nil {
			w.DestroyEntity(e)
			return 0, err
		}
	}
	return e, nil
}
