package entity

import (
	"fmt"
	"image/color"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
	"github.com/milk9111/ragdoll/prefabs"
	"github.com/milk9111/ragdoll/rig"
	"go.uber.org/zap"
)

// BuildRagdoll loads a rig prefab into space. A non-nil position overrides the
// prefab's own placement.
func BuildRagdoll(w *ecs.World, prefab string, position *prefabs.Vec2Spec, space *cp.Space, registry *collision.Registry, logger *zap.Logger) (ecs.Entity, error) {
	if w == nil {
		return 0, fmt.Errorf("build ragdoll: world is nil")
	}
	spec, err := prefabs.LoadRigSpec(prefab)
	if err != nil {
		return 0, fmt.Errorf("build ragdoll: %w", err)
	}
	if position != nil {
		spec.Position = *position
	}

	cfg, err := rig.FromSpec(spec, space, registry, logger)
	if err != nil {
		return 0, fmt.Errorf("build ragdoll %q: %w", prefab, err)
	}
	r, err := rig.New(cfg)
	if err != nil {
		return 0, fmt.Errorf("build ragdoll %q: %w", prefab, err)
	}

	var c color.Color = color.White
	if spec.Color != nil && spec.Color.Color != nil {
		c = spec.Color.Color
	}

	e := w.CreateEntity()
	root := r.SlavePose()[0]
	if err := SetEntityTransform(w, e, root.Position[0], root.Position[1], root.Rotation); err != nil {
		r.Close()
		w.DestroyEntity(e)
		return 0, err
	}
	if err := ecs.Add(w, e, component.RagdollComponent, component.Ragdoll{Rig: r, Prefab: prefab, Color: c}); err != nil {
		r.Close()
		w.DestroyEntity(e)
		return 0, err
	}
	return e, nil
}
