package follow

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/ragdoll/common"
	"github.com/milk9111/ragdoll/skeleton"
	"go.uber.org/zap"
)

// BodyState is the simulated state of one slave bone body, expressed at the
// bone's centre frame.
type BodyState struct {
	Position        mgl64.Vec2
	Angle           float64
	Velocity        mgl64.Vec2
	AngularVelocity float64
	Mass            float64
	Moment          float64
}

// Drive is the corrective force and torque for one bone for one tick.
type Drive struct {
	Force  mgl64.Vec2
	Torque float64
}

func (d Drive) IsZero() bool {
	return d.Force[0] == 0 && d.Force[1] == 0 && d.Torque == 0
}

// Actuator is a slave bone body the follower can read and push.
type Actuator interface {
	State() BodyState
	Apply(Drive)
}

// PoseSource yields the master skeleton's world pose, indexed by master bone.
type PoseSource interface {
	Pose() []skeleton.Transform
}

// StrengthReader is read-only access to per-joint strength.
type StrengthReader interface {
	Strength(joint int) float64
}

// Follower drives each slave bone toward its master bone, scaled by strength.
type Follower struct {
	binding   *skeleton.Binding
	source    PoseSource
	strength  StrengthReader
	actuators []Actuator
	gains     Gains
	logger    *zap.Logger

	drives   []Drive
	targets  []skeleton.Transform
	havePrev bool
	skipped  int
}

type Option func(*Follower)

func WithLogger(l *zap.Logger) Option {
	return func(f *Follower) {
		if l != nil {
			f.logger = l
		}
	}
}

// New wires a follower. actuators are indexed by joint (binding pair) index.
func New(binding *skeleton.Binding, source PoseSource, strength StrengthReader, actuators []Actuator, gains Gains, opts ...Option) (*Follower, error) {
	if binding == nil || source == nil || strength == nil {
		return nil, fmt.Errorf("follow: binding, pose source and strength are required")
	}
	if len(actuators) != binding.Len() {
		return nil, fmt.Errorf("%w: %d actuators for %d joints", skeleton.ErrConfigurationMismatch, len(actuators), binding.Len())
	}
	if err := gains.Validate(); err != nil {
		return nil, err
	}
	f := &Follower{
		binding:   binding,
		source:    source,
		strength:  strength,
		actuators: append([]Actuator(nil), actuators...),
		gains:     gains,
		logger:    zap.NewNop(),
		drives:    make([]Drive, binding.Len()),
		targets:   make([]skeleton.Transform, binding.Len()),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.Named("follow")
	return f, nil
}

func (f *Follower) SetGains(g Gains) error {
	if err := g.Validate(); err != nil {
		return err
	}
	f.gains = g
	return nil
}

func (f *Follower) Gains() Gains {
	return f.gains
}

// Update computes and applies one tick of drive. A non-positive dt is a no-op.
func (f *Follower) Update(dt float64) {
	if dt <= 0 || !common.IsFinite(dt) {
		return
	}

	master := f.binding.Master()
	pose := f.source.Pose()
	if len(pose) < master.Len() {
		f.logger.Warn("master pose shorter than hierarchy; skipping tick",
			zap.Int("pose", len(pose)),
			zap.Int("bones", master.Len()),
		)
		return
	}

	for j := 0; j < f.binding.Len(); j++ {
		pair := f.binding.Pair(j)
		target := skeleton.BodyFrame(pose[pair.Master], master.Bone(pair.Master))

		var targetVel mgl64.Vec2
		var targetAngVel float64
		if f.havePrev {
			prev := f.targets[j]
			targetVel = target.Position.Sub(prev.Position).Mul(1 / dt)
			targetAngVel = common.WrapAngle(target.Rotation-prev.Rotation) / dt
		}
		f.targets[j] = target

		s := common.Clamp01(f.strength.Strength(j))
		if s <= 0 {
			f.drives[j] = Drive{}
			continue
		}

		d, ok := f.gains.drive(s, f.actuators[j].State(), target, targetVel, targetAngVel)
		if !ok {
			f.skipped++
			f.drives[j] = Drive{}
			f.logger.Debug("non-finite drive; skipping bone this tick", zap.String("joint", pair.Name))
			continue
		}
		f.drives[j] = d
		f.actuators[j].Apply(d)
	}
	f.havePrev = true
}

// drive is the PD law. The unclamped result scales linearly with s, and the
// clamp keeps magnitudes at or below the configured maxima.
func (g Gains) drive(s float64, st BodyState, target skeleton.Transform, targetVel mgl64.Vec2, targetAngVel float64) (Drive, bool) {
	if !common.IsFinite(st.Position[0], st.Position[1], st.Angle, st.Velocity[0], st.Velocity[1], st.AngularVelocity, st.Mass, st.Moment) ||
		!common.IsFinite(target.Position[0], target.Position[1], target.Rotation, targetVel[0], targetVel[1], targetAngVel) {
		return Drive{}, false
	}

	posErr := target.Position.Sub(st.Position)
	velErr := targetVel.Sub(st.Velocity)
	force := posErr.Mul(g.Stiffness).Add(velErr.Mul(g.Damping)).Mul(s * st.Mass)
	if l := force.Len(); l > g.MaxForce {
		force = force.Mul(g.MaxForce / l)
	}

	angErr := common.WrapAngle(target.Rotation - st.Angle)
	torque := s * st.Moment * (g.AngularStiffness*angErr + g.AngularDamping*(targetAngVel-st.AngularVelocity))
	torque = common.Clamp(torque, -g.MaxTorque, g.MaxTorque)

	if !common.IsFinite(force[0], force[1], torque) {
		return Drive{}, false
	}
	return Drive{Force: force, Torque: torque}, true
}

// Drives returns a copy of the drives computed by the last Update.
func (f *Follower) Drives() []Drive {
	return append([]Drive(nil), f.drives...)
}

// Targets returns a copy of the last master body frames, indexed by joint.
func (f *Follower) Targets() []skeleton.Transform {
	return append([]skeleton.Transform(nil), f.targets...)
}

// Skipped counts bone updates dropped for non-finite values.
func (f *Follower) Skipped() int {
	return f.skipped
}
