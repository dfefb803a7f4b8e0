package follow

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/ragdoll/skeleton"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointBody integrates applied drives with semi-implicit Euler.
type pointBody struct {
	st      BodyState
	applied int
	pending Drive
}

func (b *pointBody) State() BodyState { return b.st }

func (b *pointBody) Apply(d Drive) {
	b.applied++
	b.pending = d
}

func (b *pointBody) integrate(dt float64) {
	b.st.Velocity = b.st.Velocity.Add(b.pending.Force.Mul(dt / b.st.Mass))
	b.st.Position = b.st.Position.Add(b.st.Velocity.Mul(dt))
	b.st.AngularVelocity += b.pending.Torque / b.st.Moment * dt
	b.st.Angle += b.st.AngularVelocity * dt
	b.pending = Drive{}
}

type staticPose []skeleton.Transform

func (p staticPose) Pose() []skeleton.Transform { return p }

type fixedStrength []float64

func (s fixedStrength) Strength(j int) float64 { return s[j] }

type fixture struct {
	binding *skeleton.Binding
	pose    staticPose
	bodies  []*pointBody
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	def := skeleton.BoneDef{
		Name: "Hips", Offset: mgl64.Vec2{100, 100}, Length: 10,
		Children: []skeleton.BoneDef{{Name: "Spine", Rotation: -math.Pi / 2, Length: 20}},
	}
	master, err := skeleton.NewHierarchy(def)
	require.NoError(t, err)
	slave, err := skeleton.NewHierarchy(def)
	require.NoError(t, err)
	b, err := skeleton.NewBinding(master, slave)
	require.NoError(t, err)

	pose := master.WorldPose(master.BindLocals(), nil)
	bodies := make([]*pointBody, b.Len())
	for j := range bodies {
		target := skeleton.BodyFrame(pose[b.Pair(j).Master], master.Bone(b.Pair(j).Master))
		bodies[j] = &pointBody{st: BodyState{
			Position: target.Position.Add(mgl64.Vec2{30, -15}),
			Angle:    target.Rotation + 0.8,
			Mass:     2,
			Moment:   50,
		}}
	}
	return fixture{binding: b, pose: pose, bodies: bodies}
}

func (fx fixture) actuators() []Actuator {
	out := make([]Actuator, len(fx.bodies))
	for i, b := range fx.bodies {
		out[i] = b
	}
	return out
}

func (fx fixture) follower(t *testing.T, s StrengthReader, g Gains) *Follower {
	t.Helper()
	f, err := New(fx.binding, fx.pose, s, fx.actuators(), g)
	require.NoError(t, err)
	return f
}

func TestZeroStrengthAppliesNoDrive(t *testing.T) {
	fx := newFixture(t)
	f := fx.follower(t, fixedStrength{0, 0}, DefaultGains())
	for i := 0; i < 10; i++ {
		f.Update(1.0 / 60)
	}
	for j, d := range f.Drives() {
		assert.True(t, d.IsZero(), "joint %d", j)
		assert.Equal(t, 0, fx.bodies[j].applied)
	}
}

func TestDriveIsMonotoneInStrength(t *testing.T) {
	g := DefaultGains()
	g.MaxForce = 2000
	g.MaxTorque = 5000
	st := BodyState{Position: mgl64.Vec2{0, 0}, Velocity: mgl64.Vec2{3, 1}, Angle: 0.2, AngularVelocity: -1, Mass: 2, Moment: 40}
	target := skeleton.Transform{Position: mgl64.Vec2{12, -5}, Rotation: 1.1}

	prevF, prevT := -1.0, -1.0
	for s := 0.0; s <= 1.0; s += 0.05 {
		d, ok := g.drive(s, st, target, mgl64.Vec2{}, 0)
		require.True(t, ok)
		fl, tl := d.Force.Len(), math.Abs(d.Torque)
		assert.GreaterOrEqual(t, fl, prevF)
		assert.GreaterOrEqual(t, tl, prevT)
		assert.LessOrEqual(t, fl, g.MaxForce+1e-9)
		assert.LessOrEqual(t, tl, g.MaxTorque+1e-9)
		prevF, prevT = fl, tl
	}
}

func TestDriveIsBounded(t *testing.T) {
	g := DefaultGains()
	g.MaxForce = 10
	g.MaxTorque = 3
	st := BodyState{Mass: 100, Moment: 100}
	target := skeleton.Transform{Position: mgl64.Vec2{1e6, -1e6}, Rotation: math.Pi * 0.9}
	d, ok := g.drive(1, st, target, mgl64.Vec2{}, 0)
	require.True(t, ok)
	assert.InDelta(t, 10, d.Force.Len(), 1e-9)
	assert.InDelta(t, 3, d.Torque, 1e-9)
}

func TestZeroDeltaChangesNothing(t *testing.T) {
	fx := newFixture(t)
	f := fx.follower(t, fixedStrength{1, 1}, DefaultGains())
	f.Update(1.0 / 60)
	before := f.Drives()
	applied := fx.bodies[0].applied

	f.Update(0)
	f.Update(-0.5)
	assert.Equal(t, before, f.Drives())
	assert.Equal(t, applied, fx.bodies[0].applied)
}

func TestFullStrengthTracksMaster(t *testing.T) {
	fx := newFixture(t)
	f := fx.follower(t, fixedStrength{1, 1}, DefaultGains())
	const dt = 1.0 / 60
	for i := 0; i < 120; i++ {
		f.Update(dt)
		for _, b := range fx.bodies {
			b.integrate(dt)
		}
	}
	targets := f.Targets()
	for j, b := range fx.bodies {
		assert.InDelta(t, 0, b.st.Position.Sub(targets[j].Position).Len(), 0.05, "joint %d position", j)
		assert.InDelta(t, targets[j].Rotation, b.st.Angle, 0.01, "joint %d angle", j)
	}
}

func TestNonFiniteBodyIsSkipped(t *testing.T) {
	fx := newFixture(t)
	fx.bodies[0].st.Velocity = mgl64.Vec2{math.NaN(), 0}
	f := fx.follower(t, fixedStrength{1, 1}, DefaultGains())

	assert.NotPanics(t, func() { f.Update(1.0 / 60) })
	drives := f.Drives()
	assert.True(t, drives[0].IsZero())
	assert.False(t, drives[1].IsZero())
	assert.Equal(t, 1, f.Skipped())
	assert.Equal(t, 0, fx.bodies[0].applied)
}

func TestNewRejectsActuatorMismatch(t *testing.T) {
	fx := newFixture(t)
	_, err := New(fx.binding, fx.pose, fixedStrength{1, 1}, fx.actuators()[:1], DefaultGains())
	assert.ErrorIs(t, err, skeleton.ErrConfigurationMismatch)

	bad := DefaultGains()
	bad.MaxForce = 0
	_, err = New(fx.binding, fx.pose, fixedStrength{1, 1}, fx.actuators(), bad)
	assert.ErrorIs(t, err, ErrInvalidGains)
}
