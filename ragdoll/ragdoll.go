package ragdoll

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/common"
	"github.com/milk9111/ragdoll/follow"
	"github.com/milk9111/ragdoll/skeleton"
	"go.uber.org/zap"
)

// collisionTypeBase offsets per-ragdoll collision types away from the small
// values the host world uses for its own shapes.
const collisionTypeBase cp.CollisionType = 1 << 16

const allCategories = ^uint(0)

const DefaultCategory = "Ragdoll"

var (
	ErrNilSpace = errors.New("ragdoll: nil space")
	ErrRemoved  = errors.New("ragdoll: removed from space")
)

var nextGroup atomic.Uint64

// Options tune body construction. Zero values fall back to defaults.
type Options struct {
	Category    string
	Friction    float64
	Elasticity  float64
	DefaultMass float64
	Logger      *zap.Logger
}

// Ragdoll is the physics side of a slave hierarchy: one Chipmunk body per
// bone, pivot joints at each child joint and optional rotary limits.
type Ragdoll struct {
	space     *cp.Space
	hierarchy *skeleton.Hierarchy
	registry  *collision.Registry
	logger    *zap.Logger

	group         uint
	collisionType cp.CollisionType
	handler       *cp.CollisionHandler

	bodies      []*cp.Body
	shapes      []*cp.Shape
	constraints []*cp.Constraint
	shapeBone   map[*cp.Shape]int

	sink    func(collision.Contact)
	tick    uint64
	removed bool
}

// Build adds the ragdoll to space at the hierarchy's bind pose.
func Build(space *cp.Space, h *skeleton.Hierarchy, registry *collision.Registry, opts Options) (*Ragdoll, error) {
	if space == nil {
		return nil, ErrNilSpace
	}
	if h == nil || h.Len() == 0 {
		return nil, fmt.Errorf("%w: empty slave hierarchy", skeleton.ErrConfigurationMismatch)
	}
	if registry == nil {
		var err error
		if registry, err = collision.NewRegistry(); err != nil {
			return nil, err
		}
	}
	if opts.Category == "" {
		opts.Category = DefaultCategory
	}
	if opts.DefaultMass <= 0 {
		opts.DefaultMass = 1
	}
	if opts.Friction <= 0 {
		opts.Friction = 0.7
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	category, err := registry.Bit(opts.Category)
	if err != nil {
		return nil, fmt.Errorf("ragdoll: register category: %w", err)
	}

	group := uint(nextGroup.Add(1))
	r := &Ragdoll{
		space:         space,
		hierarchy:     h,
		registry:      registry,
		logger:        opts.Logger.Named("ragdoll"),
		group:         group,
		collisionType: collisionTypeBase + cp.CollisionType(group),
		bodies:        make([]*cp.Body, h.Len()),
		shapes:        make([]*cp.Shape, h.Len()),
		shapeBone:     make(map[*cp.Shape]int, h.Len()),
	}
	filter := cp.ShapeFilter{Group: group, Categories: category, Mask: allCategories}

	pose := h.WorldPose(h.BindLocals(), nil)
	for i := 0; i < h.Len(); i++ {
		bone := h.Bone(i)
		length, width := bone.Length, bone.Width
		if length <= 0 {
			length = 1
		}
		if width <= 0 {
			width = length / 4
		}
		mass := bone.Mass
		if mass <= 0 {
			mass = opts.DefaultMass
		}

		frame := skeleton.BodyFrame(pose[i], bone)
		body := cp.NewBody(mass, cp.MomentForBox(mass, length, width))
		body.SetPosition(toVector(frame.Position))
		body.SetAngle(r.unwrappedAngle(i, pose))

		shape := cp.NewBox(body, length, width, 0)
		shape.SetFriction(opts.Friction)
		shape.SetElasticity(opts.Elasticity)
		shape.SetCollisionType(r.collisionType)
		shape.SetFilter(filter)

		space.AddBody(body)
		space.AddShape(shape)
		r.bodies[i] = body
		r.shapes[i] = shape
		r.shapeBone[shape] = i

		if bone.Parent < 0 {
			continue
		}
		parent := r.bodies[bone.Parent]
		pivot := cp.NewPivotJoint(parent, body, toVector(pose[i].Position))
		pivot.SetCollideBodies(false)
		space.AddConstraint(pivot)
		r.constraints = append(r.constraints, pivot)

		if bone.Limit != nil {
			limit := cp.NewRotaryLimitJoint(parent, body, bone.Limit.Min, bone.Limit.Max)
			space.AddConstraint(limit)
			r.constraints = append(r.constraints, limit)
		}
	}

	r.handler = space.NewWildcardCollisionHandler(r.collisionType)
	r.handler.UserData = r
	r.handler.PostSolveFunc = postSolve

	r.logger.Debug("ragdoll built",
		zap.Int("bones", h.Len()),
		zap.Int("constraints", len(r.constraints)),
		zap.Uint("group", group),
	)
	return r, nil
}

func postSolve(arb *cp.Arbiter, space *cp.Space, userData interface{}) {
	r, ok := userData.(*Ragdoll)
	if !ok || r == nil || r.removed || r.sink == nil {
		return
	}
	a, b := arb.Shapes()
	bone, mine := r.shapeBone[a]
	other := b
	if !mine {
		bone, mine = r.shapeBone[b]
		other = a
	}
	if !mine || other == nil {
		return
	}
	if _, self := r.shapeBone[other]; self {
		return
	}
	r.sink(collision.Contact{
		Joint:      r.hierarchy.Bone(bone).Name,
		Categories: r.categories(other),
		Impulse:    arb.TotalImpulse().Length(),
		Tick:       r.tick,
	})
}

// categories resolves the labels of a foreign shape. Shapes left on the
// default all-categories filter carry no labels.
func (r *Ragdoll) categories(shape *cp.Shape) []string {
	cats := shape.Filter.Categories
	if cats == allCategories {
		return nil
	}
	return r.registry.Labels(cats)
}

// OnContact sets where contacts are delivered, normally the strength
// controller's Observe.
func (r *Ragdoll) OnContact(sink func(collision.Contact)) {
	r.sink = sink
}

// SetTick stamps subsequent contacts.
func (r *Ragdoll) SetTick(tick uint64) {
	r.tick = tick
}

func (r *Ragdoll) Len() int {
	return len(r.bodies)
}

// Body returns the Chipmunk body of a slave bone.
func (r *Ragdoll) Body(bone int) *cp.Body {
	return r.bodies[bone]
}

func (r *Ragdoll) Group() uint {
	return r.group
}

func (r *Ragdoll) Hierarchy() *skeleton.Hierarchy {
	return r.hierarchy
}

// Actuators returns one actuator per joint of binding, in joint order.
func (r *Ragdoll) Actuators(binding *skeleton.Binding) ([]follow.Actuator, error) {
	if binding.Slave() != r.hierarchy {
		return nil, fmt.Errorf("%w: binding slave is not this ragdoll's hierarchy", skeleton.ErrConfigurationMismatch)
	}
	out := make([]follow.Actuator, binding.Len())
	for j := 0; j < binding.Len(); j++ {
		out[j] = &actuator{body: r.bodies[binding.Pair(j).Slave]}
	}
	return out, nil
}

// BodyFrames returns the world centre frame of every bone body.
func (r *Ragdoll) BodyFrames() []skeleton.Transform {
	out := make([]skeleton.Transform, len(r.bodies))
	for i, b := range r.bodies {
		out[i] = skeleton.Transform{Position: fromVector(b.Position()), Rotation: b.Angle(), Scale: mgl64.Vec2{1, 1}}
	}
	return out
}

// Pose returns the world joint frame of every bone, comparable to a master pose.
func (r *Ragdoll) Pose() []skeleton.Transform {
	frames := r.BodyFrames()
	for i := range frames {
		frames[i] = skeleton.JointFrame(frames[i], r.hierarchy.Bone(i))
	}
	return frames
}

// Teleport places every body at the given joint frames with zero velocity.
func (r *Ragdoll) Teleport(pose []skeleton.Transform) error {
	if r.removed {
		return ErrRemoved
	}
	if len(pose) != len(r.bodies) {
		return fmt.Errorf("%w: teleport pose has %d bones, ragdoll has %d", skeleton.ErrConfigurationMismatch, len(pose), len(r.bodies))
	}
	for i, b := range r.bodies {
		frame := skeleton.BodyFrame(pose[i], r.hierarchy.Bone(i))
		b.SetPosition(toVector(frame.Position))
		b.SetAngle(r.unwrappedAngle(i, pose))
		b.SetVelocity(0, 0)
		b.SetAngularVelocity(0)
	}
	return nil
}

// Remove takes every constraint, shape and body out of the space. It is safe
// to call more than once but must not be called during a space step.
func (r *Ragdoll) Remove() {
	if r == nil || r.removed {
		return
	}
	r.removed = true
	r.sink = nil
	for _, c := range r.constraints {
		r.space.RemoveConstraint(c)
	}
	for _, s := range r.shapes {
		r.space.RemoveShape(s)
		delete(r.shapeBone, s)
	}
	for _, b := range r.bodies {
		r.space.RemoveBody(b)
	}
	r.constraints = nil
	r.shapeBone = nil
	// cp has no call to unregister a handler; detach it so the space holds
	// nothing of this ragdoll.
	if r.handler != nil {
		r.handler.PostSolveFunc = cp.DoNothing
		r.handler.UserData = nil
		r.handler = nil
	}
	r.logger.Debug("ragdoll removed", zap.Uint("group", r.group))
}

// unwrappedAngle keeps each child's angle continuous with its parent body so
// rotary limits, which compare raw body angles, see the local rotation.
// Bodies must be created or placed in parent-first order.
func (r *Ragdoll) unwrappedAngle(i int, pose []skeleton.Transform) float64 {
	bone := r.hierarchy.Bone(i)
	if bone.Parent < 0 {
		return pose[i].Rotation
	}
	local := common.WrapAngle(pose[i].Rotation-pose[bone.Parent].Rotation-bone.Local.Rotation) + bone.Local.Rotation
	return r.bodies[bone.Parent].Angle() + local
}

func (r *Ragdoll) Removed() bool {
	return r.removed
}

type actuator struct {
	body *cp.Body
}

func (a *actuator) State() follow.BodyState {
	return follow.BodyState{
		Position:        fromVector(a.body.Position()),
		Angle:           a.body.Angle(),
		Velocity:        fromVector(a.body.Velocity()),
		AngularVelocity: a.body.AngularVelocity(),
		Mass:            a.body.Mass(),
		Moment:          a.body.Moment(),
	}
}

// Apply accumulates force at the centre of gravity and torque. Chipmunk clears
// both after each step.
func (a *actuator) Apply(d follow.Drive) {
	a.body.ApplyForceAtWorldPoint(cp.Vector{X: d.Force[0], Y: d.Force[1]}, a.body.Position())
	a.body.SetTorque(a.body.Torque() + d.Torque)
}

func toVector(v mgl64.Vec2) cp.Vector {
	return cp.Vector{X: v[0], Y: v[1]}
}

func fromVector(v cp.Vector) mgl64.Vec2 {
	return mgl64.Vec2{v.X, v.Y}
}
