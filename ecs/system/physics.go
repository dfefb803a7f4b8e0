package system

import (
	"github.com/jakecoffman/cp"
	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/common"
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
	"go.uber.org/zap"
)

const collisionTypeSolid cp.CollisionType = 1

const allCategories = ^uint(0)

// PhysicsSystem owns the Chipmunk space shared by props, ground and ragdolls.
// It mirrors PhysicsBody and Segment components into the space, steps it by
// the world timestep and writes dynamic body poses back to Transforms.
type PhysicsSystem struct {
	space    *cp.Space
	registry *collision.Registry
	logger   *zap.Logger

	entities map[ecs.Entity]*bodyInfo
	shapes   map[*cp.Shape]ecs.Entity
}

type bodyInfo struct {
	body      *cp.Body
	mainShape *cp.Shape
	shapes    []*cp.Shape
	static    bool
}

func NewPhysicsSystem(registry *collision.Registry, gravity float64, logger *zap.Logger) *PhysicsSystem {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry, _ = collision.NewRegistry()
	}
	space := cp.NewSpace()
	space.Iterations = 20
	space.SetGravity(cp.Vector{X: 0, Y: gravity})
	return &PhysicsSystem{
		space:    space,
		registry: registry,
		logger:   logger.Named("physics"),
		entities: make(map[ecs.Entity]*bodyInfo),
		shapes:   make(map[*cp.Shape]ecs.Entity),
	}
}

func (ps *PhysicsSystem) Space() *cp.Space {
	if ps == nil {
		return nil
	}
	return ps.space
}

func (ps *PhysicsSystem) Registry() *collision.Registry {
	return ps.registry
}

// EntityForShape maps a prop or ground shape back to its entity.
func (ps *PhysicsSystem) EntityForShape(shape *cp.Shape) (ecs.Entity, bool) {
	e, ok := ps.shapes[shape]
	return e, ok
}

func (ps *PhysicsSystem) Update(w *ecs.World) {
	if ps == nil || w == nil {
		return
	}

	ps.cleanupEntities(w)
	ps.syncEntities(w)
	ps.syncSegments(w)

	ps.space.Step(w.DT())

	ps.syncTransforms(w)
}

// Close removes every body and shape this system created.
func (ps *PhysicsSystem) Close() {
	for e, info := range ps.entities {
		ps.removeInfo(info)
		delete(ps.entities, e)
	}
}

func (ps *PhysicsSystem) filter(w *ecs.World, e ecs.Entity) cp.ShapeFilter {
	layer, ok := ecs.Get(w, e, component.CollisionLayerComponent)
	if !ok || layer.Category == "" {
		return cp.ShapeFilter{Group: 0, Categories: allCategories, Mask: allCategories}
	}
	category, err := ps.registry.Bit(layer.Category)
	if err != nil {
		ps.logger.Warn("collision category not registered; colliding with everything",
			zap.Stringer("entity", e),
			zap.String("category", layer.Category),
			zap.Error(err),
		)
		return cp.ShapeFilter{Group: 0, Categories: allCategories, Mask: allCategories}
	}
	mask := allCategories
	if len(layer.Mask) > 0 {
		if mask, err = ps.registry.Mask(layer.Mask...); err != nil {
			ps.logger.Warn("collision mask not registered; colliding with everything",
				zap.Stringer("entity", e),
				zap.Strings("mask", layer.Mask),
				zap.Error(err),
			)
			mask = allCategories
		}
	}
	return cp.ShapeFilter{Group: 0, Categories: category, Mask: mask}
}

func (ps *PhysicsSystem) syncEntities(w *ecs.World) {
	entities := w.Query(component.PhysicsBodyComponent.Kind(), component.TransformComponent.Kind())
	for _, e := range entities {
		if _, ok := ps.entities[e]; ok {
			continue
		}
		bodyComp, ok := ecs.Get(w, e, component.PhysicsBodyComponent)
		if !ok {
			continue
		}
		transform, ok := ecs.Get(w, e, component.TransformComponent)
		if !ok {
			continue
		}

		info := ps.createBodyInfo(transform, bodyComp, ps.filter(w, e))
		ps.entities[e] = info
		for _, s := range info.shapes {
			ps.shapes[s] = e
		}
		bodyComp.Body = info.body
		bodyComp.Shape = info.mainShape
		_ = ecs.Add(w, e, component.PhysicsBodyComponent, bodyComp)
	}
}

func (ps *PhysicsSystem) createBodyInfo(transform component.Transform, bodyComp component.PhysicsBody, filter cp.ShapeFilter) *bodyInfo {
	width, height, radius := bodyComp.Width, bodyComp.Height, bodyComp.Radius
	if radius <= 0 && (width <= 0 || height <= 0) {
		width, height = 32, 32
	}

	info := &bodyInfo{static: bodyComp.Static}
	var body *cp.Body
	if bodyComp.Static {
		body = cp.NewStaticBody()
	} else {
		mass := bodyComp.Mass
		if mass <= 0 {
			mass = 1
		}
		moment := cp.MomentForBox(mass, width, height)
		if radius > 0 {
			moment = cp.MomentForCircle(mass, 0, radius, cp.Vector{})
		}
		body = cp.NewBody(mass, moment)
	}
	body.SetPosition(cp.Vector{X: transform.X, Y: transform.Y})
	body.SetAngle(transform.Rotation)

	var shape *cp.Shape
	if radius > 0 {
		shape = cp.NewCircle(body, radius, cp.Vector{})
	} else {
		shape = cp.NewBox(body, width, height, 0)
	}
	shape.SetFriction(bodyComp.Friction)
	shape.SetElasticity(bodyComp.Elasticity)
	shape.SetCollisionType(collisionTypeSolid)
	shape.SetFilter(filter)

	ps.space.AddBody(body)
	ps.space.AddShape(shape)
	if !bodyComp.Static {
		body.SetVelocity(bodyComp.VelocityX, bodyComp.VelocityY)
	}

	info.body = body
	info.mainShape = shape
	info.shapes = []*cp.Shape{shape}
	return info
}

func (ps *PhysicsSystem) syncSegments(w *ecs.World) {
	for _, e := range w.Query(component.SegmentComponent.Kind()) {
		if _, exists := ps.entities[e]; exists {
			continue
		}
		seg, ok := ecs.Get(w, e, component.SegmentComponent)
		if !ok {
			continue
		}
		thickness := seg.Thickness
		if thickness <= 0 {
			thickness = 1
		}
		shape := cp.NewSegment(ps.space.StaticBody, cp.Vector{X: seg.AX, Y: seg.AY}, cp.Vector{X: seg.BX, Y: seg.BY}, thickness)
		shape.SetFriction(seg.Friction)
		shape.SetCollisionType(collisionTypeSolid)
		shape.SetFilter(ps.filter(w, e))
		ps.space.AddShape(shape)

		ps.entities[e] = &bodyInfo{static: true, body: ps.space.StaticBody, mainShape: shape, shapes: []*cp.Shape{shape}}
		ps.shapes[shape] = e
		seg.Shape = shape
		_ = ecs.Add(w, e, component.SegmentComponent, seg)
	}
}

func (ps *PhysicsSystem) syncTransforms(w *ecs.World) {
	entities := w.Query(component.PhysicsBodyComponent.Kind(), component.TransformComponent.Kind())
	for _, e := range entities {
		bodyComp, ok := ecs.Get(w, e, component.PhysicsBodyComponent)
		if !ok || bodyComp.Body == nil || bodyComp.Static {
			continue
		}
		pos := bodyComp.Body.Position()
		if !common.IsFinite(pos.X, pos.Y) {
			ps.logger.Warn("body left the simulation; destroying entity", zap.Stringer("entity", e))
			w.DestroyEntity(e)
			continue
		}
		transform := component.Transform{X: pos.X, Y: pos.Y, Rotation: bodyComp.Body.Angle()}
		_ = ecs.Add(w, e, component.TransformComponent, transform)
	}
}

func (ps *PhysicsSystem) cleanupEntities(w *ecs.World) {
	for e, info := range ps.entities {
		if w.IsAlive(e) && (ecs.Has(w, e, component.PhysicsBodyComponent) || ecs.Has(w, e, component.SegmentComponent)) {
			continue
		}
		ps.removeInfo(info)
		delete(ps.entities, e)
	}
}

func (ps *PhysicsSystem) removeInfo(info *bodyInfo) {
	for _, shape := range info.shapes {
		ps.space.RemoveShape(shape)
		delete(ps.shapes, shape)
	}
	if info.body != nil && info.body != ps.space.StaticBody {
		ps.space.RemoveBody(info.body)
	}
}
