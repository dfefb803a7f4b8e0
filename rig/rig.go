package rig

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/ragdoll/anim"
	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/common"
	"github.com/milk9111/ragdoll/follow"
	"github.com/milk9111/ragdoll/ragdoll"
	"github.com/milk9111/ragdoll/skeleton"
	"github.com/milk9111/ragdoll/strength"
	"go.uber.org/zap"
)

var (
	ErrNilRoot = errors.New("rig: master and slave roots are required")
	ErrClosed  = errors.New("rig: closed")
)

// Config is everything a rig needs at construction. A zero SlaveController or
// AnimFollow selects the package defaults, so an all-zero tuning must name its
// Scope to be kept as given. A nil Space gives the rig a private space that
// Tick steps itself.
type Config struct {
	MasterRoot                *skeleton.Hierarchy
	SlaveRoot                 *skeleton.Hierarchy
	DontLoseStrengthLayerMask []string
	SlaveController           strength.Config
	AnimFollow                follow.Gains
	Clip                      *anim.Clip
	ImpactScript              *strength.ImpactScript

	Space    *cp.Space
	Registry *collision.Registry
	Category string
	Logger   *zap.Logger
}

// Rig pairs an animated master skeleton with a physics slave and keeps the
// slave following the master at a strength that drops on impact.
type Rig struct {
	id     uuid.UUID
	name   string
	logger *zap.Logger

	space     *cp.Space
	ownsSpace bool

	binding    *skeleton.Binding
	exempt     collision.ExemptionSet
	animator   *anim.Animator
	body       *ragdoll.Ragdoll
	controller *strength.Controller
	follower   *follow.Follower

	tick        uint64
	transitions []strength.Transition
	closed      bool
}

func New(cfg Config) (*Rig, error) {
	if cfg.MasterRoot == nil || cfg.SlaveRoot == nil {
		return nil, ErrNilRoot
	}
	if cfg.SlaveController == (strength.Config{}) {
		cfg.SlaveController = strength.DefaultConfig()
	}
	if cfg.AnimFollow == (follow.Gains{}) {
		cfg.AnimFollow = follow.DefaultGains()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	id := uuid.New()
	logger := cfg.Logger.Named("rig").With(zap.String("rig", id.String()))

	binding, err := skeleton.NewBinding(cfg.MasterRoot, cfg.SlaveRoot)
	if err != nil {
		logger.Error("binding failed", zap.Error(err))
		return nil, fmt.Errorf("rig: bind skeletons: %w", err)
	}

	r := &Rig{
		id:      id,
		name:    cfg.MasterRoot.Root().Name,
		logger:  logger,
		space:   cfg.Space,
		binding: binding,
		exempt:  collision.NewExemptionSet(cfg.DontLoseStrengthLayerMask...),
	}
	if r.space == nil {
		r.space = cp.NewSpace()
		r.space.Iterations = 20
		r.space.SetGravity(cp.Vector{X: 0, Y: common.Gravity})
		r.ownsSpace = true
	}

	r.controller, err = strength.New(binding, r.exempt, cfg.SlaveController,
		strength.WithLogger(logger),
		strength.WithImpactScript(cfg.ImpactScript),
	)
	if err != nil {
		return nil, fmt.Errorf("rig: strength controller: %w", err)
	}

	r.animator = anim.NewAnimator(cfg.MasterRoot, cfg.Clip, logger)

	r.body, err = ragdoll.Build(r.space, cfg.SlaveRoot, cfg.Registry, ragdoll.Options{
		Category: cfg.Category,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("rig: build ragdoll: %w", err)
	}
	r.body.OnContact(r.controller.Observe)

	actuators, err := r.body.Actuators(binding)
	if err != nil {
		r.body.Remove()
		return nil, fmt.Errorf("rig: actuators: %w", err)
	}
	r.follower, err = follow.New(binding, r.animator, r.controller, actuators, cfg.AnimFollow,
		follow.WithLogger(logger),
	)
	if err != nil {
		r.body.Remove()
		return nil, fmt.Errorf("rig: pose follower: %w", err)
	}

	logger.Info("rig ready",
		zap.String("name", r.name),
		zap.Int("joints", binding.Len()),
		zap.Strings("dont_lose_strength_layers", r.exempt.Labels()),
		zap.String("scope", string(r.controller.Config().Scope)),
		zap.String("impact_script", cfg.ImpactScript.Name()),
	)
	return r, nil
}

// Tick advances the master animation, settles strength from the contacts
// observed since the previous tick and then drives the slave bodies with the
// updated strength. A non-positive dt changes nothing.
func (r *Rig) Tick(dt float64) error {
	if r.closed {
		return ErrClosed
	}
	if dt <= 0 || !common.IsFinite(dt) {
		return nil
	}
	r.tick++
	r.body.SetTick(r.tick)

	r.animator.Advance(dt)
	r.controller.Update(dt)
	r.follower.Update(dt)

	r.transitions = r.controller.Transitions()
	for _, t := range r.transitions {
		r.logger.Debug("joint strength state changed",
			zap.String("joint", t.Name),
			zap.Stringer("from", t.From),
			zap.Stringer("to", t.To),
			zap.Float64("strength", t.Strength),
			zap.Uint64("tick", r.tick),
		)
	}

	if r.ownsSpace {
		r.space.Step(dt)
	}
	return nil
}

// Close removes the ragdoll from its space and releases the binding and the
// parts built on it. Further ticks fail with ErrClosed; the part accessors
// return nil and the poses are empty.
func (r *Rig) Close() {
	if r == nil || r.closed {
		return
	}
	r.closed = true
	r.body.OnContact(nil)
	r.body.Remove()
	r.body = nil
	r.follower = nil
	r.controller = nil
	r.animator = nil
	r.binding = nil
	r.transitions = nil
	r.logger.Info("rig closed", zap.Uint64("ticks", r.tick))
}

func (r *Rig) Closed() bool {
	return r.closed
}

// Reconfigure swaps controller tuning and follower gains. Nothing changes
// unless both are valid.
func (r *Rig) Reconfigure(cfg strength.Config, gains follow.Gains) error {
	if r.closed {
		return ErrClosed
	}
	if err := gains.Validate(); err != nil {
		return err
	}
	if err := r.controller.Reconfigure(cfg); err != nil {
		return err
	}
	if err := r.follower.SetGains(gains); err != nil {
		return err
	}
	r.logger.Info("rig reconfigured",
		zap.String("scope", string(cfg.Scope)),
		zap.Float64("floor", cfg.Floor),
		zap.Float64("stiffness", gains.Stiffness),
	)
	return nil
}

// SetImpactScript replaces the contact loss script.
func (r *Rig) SetImpactScript(script *strength.ImpactScript) error {
	if r.closed {
		return ErrClosed
	}
	r.controller.SetImpactScript(script)
	r.logger.Info("impact script replaced", zap.String("impact_script", script.Name()))
	return nil
}

// Reset restores full strength and snaps the slave onto the current master pose.
func (r *Rig) Reset() error {
	if r.closed {
		return ErrClosed
	}
	r.controller.Reset()
	return r.body.Teleport(r.slaveTargets())
}

// slaveTargets maps the master pose onto slave bone indices.
func (r *Rig) slaveTargets() []skeleton.Transform {
	master := r.animator.Pose()
	out := r.binding.Slave().WorldPose(nil, nil)
	for _, p := range r.binding.Pairs() {
		out[p.Slave] = master[p.Master]
	}
	return out
}

// JointStrength looks a joint up by bone name.
func (r *Rig) JointStrength(name string) (float64, bool) {
	if r.closed {
		return 0, false
	}
	j, ok := r.binding.Joint(name)
	if !ok {
		return 0, false
	}
	return r.controller.Strength(j), true
}

func (r *Rig) ID() uuid.UUID { return r.id }
func (r *Rig) Name() string { return r.name }
func (r *Rig) Ticks() uint64 { return r.tick }
func (r *Rig) Space() *cp.Space { return r.space }
func (r *Rig) Binding() *skeleton.Binding { return r.binding }
func (r *Rig) Exemptions() collision.ExemptionSet { return r.exempt }
func (r *Rig) Controller() *strength.Controller { return r.controller }
func (r *Rig) Follower() *follow.Follower { return r.follower }
func (r *Rig) Ragdoll() *ragdoll.Ragdoll { return r.body }
func (r *Rig) Animator() *anim.Animator { return r.animator }

// Transitions are the strength state changes from the most recent tick.
func (r *Rig) Transitions() []strength.Transition {
	return r.transitions
}

// MasterPose is the animated world pose, indexed by master bone.
func (r *Rig) MasterPose() []skeleton.Transform {
	if r.closed {
		return nil
	}
	return r.animator.Pose()
}

// SlavePose is the simulated world pose, indexed by slave bone.
func (r *Rig) SlavePose() []skeleton.Transform {
	if r.closed {
		return nil
	}
	return r.body.Pose()
}
