package ragdoll

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/common"
	"github.com/milk9111/ragdoll/follow"
	"github.com/milk9111/ragdoll/skeleton"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T) *skeleton.Hierarchy {
	t.Helper()
	h, err := skeleton.NewHierarchy(skeleton.BoneDef{
		Name: "Hips", Offset: mgl64.Vec2{0, 0}, Length: 20, Width: 8, Mass: 2,
		Children: []skeleton.BoneDef{{
			Name: "Thigh", Offset: mgl64.Vec2{20, 0}, Length: 20, Width: 6, Mass: 1,
			Limit: &skeleton.AngleLimit{Min: -math.Pi / 2, Max: math.Pi / 2},
		}},
	})
	require.NoError(t, err)
	return h
}

func newSpace() *cp.Space {
	space := cp.NewSpace()
	space.Iterations = 20
	space.SetGravity(cp.Vector{X: 0, Y: common.Gravity})
	return space
}

func countBodies(space *cp.Space) int {
	n := 0
	space.EachBody(func(*cp.Body) { n++ })
	return n
}

func TestBuildPlacesBodiesAtBindPose(t *testing.T) {
	space := newSpace()
	h := chain(t)
	baseline := countBodies(space)
	r, err := Build(space, h, nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Len(t, r.constraints, 3, "one pivot plus one rotary limit")
	assert.Equal(t, baseline+2, countBodies(space))

	frames := r.BodyFrames()
	assert.InDelta(t, 10, frames[0].Position[0], 1e-9)
	assert.InDelta(t, 30, frames[1].Position[0], 1e-9)

	bind := h.WorldPose(h.BindLocals(), nil)
	for i, p := range r.Pose() {
		assert.InDelta(t, 0, p.Position.Sub(bind[i].Position).Len(), 1e-9)
	}

	for _, s := range r.shapes {
		assert.Equal(t, r.Group(), s.Filter.Group)
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	_, err := Build(nil, chain(t), nil, Options{})
	assert.ErrorIs(t, err, ErrNilSpace)

	_, err = Build(newSpace(), nil, nil, Options{})
	assert.ErrorIs(t, err, skeleton.ErrConfigurationMismatch)
}

func TestContactsCarryForeignCategories(t *testing.T) {
	space := newSpace()
	registry, err := collision.NewRegistry("Terrain")
	require.NoError(t, err)
	terrain, err := registry.Bit("Terrain")
	require.NoError(t, err)

	ground := cp.NewSegment(space.StaticBody, cp.Vector{X: -500, Y: 100}, cp.Vector{X: 500, Y: 100}, 2)
	ground.SetFriction(0.8)
	ground.SetFilter(cp.ShapeFilter{Categories: terrain, Mask: allCategories})
	space.AddShape(ground)

	r, err := Build(space, chain(t), registry, Options{})
	require.NoError(t, err)

	var contacts []collision.Contact
	r.OnContact(func(c collision.Contact) { contacts = append(contacts, c) })
	r.SetTick(7)

	for i := 0; i < 120; i++ {
		space.Step(1.0 / 60)
	}

	require.NotEmpty(t, contacts)
	for _, c := range contacts {
		assert.Contains(t, []string{"Hips", "Thigh"}, c.Joint)
		assert.Equal(t, []string{"Terrain"}, c.Categories)
		assert.Equal(t, uint64(7), c.Tick)
		assert.GreaterOrEqual(t, c.Impulse, 0.0)
	}
}

func TestNoSelfContacts(t *testing.T) {
	space := newSpace()
	space.SetGravity(cp.Vector{})
	r, err := Build(space, chain(t), nil, Options{})
	require.NoError(t, err)

	var contacts int
	r.OnContact(func(collision.Contact) { contacts++ })
	for i := 0; i < 30; i++ {
		space.Step(1.0 / 60)
	}
	assert.Zero(t, contacts)
}

func TestActuatorsDriveBodies(t *testing.T) {
	space := newSpace()
	space.SetGravity(cp.Vector{})
	h := chain(t)
	binding, err := skeleton.NewBinding(h, h)
	require.NoError(t, err)

	r, err := Build(space, h, nil, Options{})
	require.NoError(t, err)
	acts, err := r.Actuators(binding)
	require.NoError(t, err)
	require.Len(t, acts, 2)

	before := acts[0].State()
	assert.Equal(t, 2.0, before.Mass)

	acts[0].Apply(follow.Drive{Force: mgl64.Vec2{0, -600}})
	space.Step(1.0 / 60)
	after := acts[0].State()
	assert.Less(t, after.Velocity[1], 0.0)

	other, err := skeleton.NewHierarchy(skeleton.BoneDef{Name: "Hips", Children: []skeleton.BoneDef{{Name: "Thigh"}}})
	require.NoError(t, err)
	foreign, err := skeleton.NewBinding(other, other)
	require.NoError(t, err)
	_, err = r.Actuators(foreign)
	assert.ErrorIs(t, err, skeleton.ErrConfigurationMismatch)
}

func TestTeleportAndRemove(t *testing.T) {
	space := newSpace()
	h := chain(t)
	baseline := countBodies(space)
	r, err := Build(space, h, nil, Options{})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		space.Step(1.0 / 60)
	}
	bind := h.WorldPose(h.BindLocals(), nil)
	require.NoError(t, r.Teleport(bind))
	assert.InDelta(t, 10, r.Body(0).Position().X, 1e-9)
	assert.Zero(t, r.Body(0).Velocity().Length())

	assert.ErrorIs(t, r.Teleport(bind[:1]), skeleton.ErrConfigurationMismatch)

	r.Remove()
	r.Remove()
	assert.True(t, r.Removed())
	assert.Equal(t, baseline, countBodies(space))
	assert.ErrorIs(t, r.Teleport(bind), ErrRemoved)
}

func TestRemoveDetachesCollisionHandler(t *testing.T) {
	space := newSpace()
	registry, err := collision.NewRegistry("Terrain")
	require.NoError(t, err)
	terrain, err := registry.Bit("Terrain")
	require.NoError(t, err)
	ground := cp.NewSegment(space.StaticBody, cp.Vector{X: -500, Y: 100}, cp.Vector{X: 500, Y: 100}, 2)
	ground.SetFilter(cp.ShapeFilter{Categories: terrain, Mask: allCategories})
	space.AddShape(ground)

	first, err := Build(space, chain(t), registry, Options{})
	require.NoError(t, err)
	handler := first.handler
	require.NotNil(t, handler)
	var stale int
	first.OnContact(func(collision.Contact) { stale++ })

	first.Remove()
	assert.Nil(t, first.handler)
	assert.Nil(t, first.shapeBone)
	assert.Nil(t, handler.UserData)
	assert.NotPanics(t, func() { handler.PostSolveFunc(nil, space, handler.UserData) })

	second, err := Build(space, chain(t), registry, Options{})
	require.NoError(t, err)
	var fresh int
	second.OnContact(func(collision.Contact) { fresh++ })
	for i := 0; i < 120; i++ {
		space.Step(1.0 / 60)
	}
	assert.Positive(t, fresh)
	assert.Zero(t, stale)
}
