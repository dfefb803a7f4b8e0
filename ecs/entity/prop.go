package entity

import (
	"fmt"

	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
)

// BuildProp builds a prop prefab at (x, y) with an initial velocity. The
// physics system picks the body up on its next update.
func BuildProp(w *ecs.World, prefab string, x, y, vx, vy float64) (ecs.Entity, error) {
	e, err := BuildEntity(w, prefab)
	if err != nil {
		return 0, err
	}
	if err := SetEntityTransform(w, e, x, y, 0); err != nil {
		w.DestroyEntity(e)
		return 0, err
	}

	body, ok := ecs.Get(w, e, component.PhysicsBodyComponent)
	if !ok {
		w.DestroyEntity(e)
		return 0, fmt.Errorf("build prop %q: prefab has no physics_body", prefab)
	}
	body.VelocityX = vx
	body.VelocityY = vy
	if err := ecs.Add(w, e, component.PhysicsBodyComponent, body); err != nil {
		w.DestroyEntity(e)
		return 0, err
	}
	return e, nil
}
