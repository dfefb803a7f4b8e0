package system

import (
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
	"github.com/milk9111/ragdoll/ecs/entity"
	"github.com/milk9111/ragdoll/prefabs"
	"github.com/milk9111/ragdoll/strength"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sim struct {
	world     *ecs.World
	physics   *PhysicsSystem
	ragdolls  *RagdollSystem
	scheduler *ecs.Scheduler
}

func newSim(t *testing.T, gravity float64) *sim {
	t.Helper()
	registry, err := collision.NewRegistry("Terrain", "Ragdoll", "Prop")
	require.NoError(t, err)
	s := &sim{
		world:    ecs.NewWorld(ecs.DefaultTimestep),
		physics:  NewPhysicsSystem(registry, gravity, nil),
		ragdolls: NewRagdollSystem(nil),
	}
	s.scheduler = ecs.NewScheduler(NewSpawnSystem(nil), s.ragdolls, s.physics, NewTTLSystem())
	t.Cleanup(func() {
		s.ragdolls.Close()
		s.physics.Close()
	})
	return s
}

func (s *sim) run(n int) {
	for i := 0; i < n; i++ {
		s.scheduler.Update(s.world)
	}
}

func countBodies(space *cp.Space) int {
	n := 0
	space.EachBody(func(*cp.Body) { n++ })
	return n
}

func TestPropFallsOntoGround(t *testing.T) {
	s := newSim(t, 900)
	_, err := entity.BuildGround(s.world, prefabs.GroundSpec{
		From: prefabs.Vec2Spec{X: 0, Y: 200}, To: prefabs.Vec2Spec{X: 400, Y: 200},
		Thickness: 4, Friction: 0.9, Layer: "Terrain",
	})
	require.NoError(t, err)

	crate, err := entity.BuildProp(s.world, "crate.yaml", 100, 100, 0, 0)
	require.NoError(t, err)

	s.run(1)
	body, ok := ecs.Get(s.world, crate, component.PhysicsBodyComponent)
	require.True(t, ok)
	require.NotNil(t, body.Body, "physics system should create the body")
	e, ok := s.physics.EntityForShape(body.Shape)
	require.True(t, ok)
	assert.Equal(t, crate, e)

	s.run(179)
	tr, ok := ecs.Get(s.world, crate, component.TransformComponent)
	require.True(t, ok)
	// Ground radius 4 at y=200, crate half-height 14.
	assert.InDelta(t, 182, tr.Y, 3)
	assert.InDelta(t, 100, tr.X, 3)
}

func TestTTLRemovesPropAndItsBody(t *testing.T) {
	s := newSim(t, 0)
	baseline := countBodies(s.physics.Space())

	crate, err := entity.BuildProp(s.world, "crate.yaml", 0, 0, 0, 0)
	require.NoError(t, err)
	s.run(1)
	assert.Equal(t, baseline+1, countBodies(s.physics.Space()))

	ttl, ok := ecs.Get(s.world, crate, component.TTLComponent)
	require.True(t, ok)
	assert.InDelta(t, 5-ecs.DefaultTimestep, ttl.Seconds, 1e-9)

	s.run(305)
	assert.False(t, s.world.IsAlive(crate))
	assert.Equal(t, baseline, countBodies(s.physics.Space()))
}

func TestSpawnerReleasesRequestsOnTime(t *testing.T) {
	s := newSim(t, 0)
	spawner := s.world.CreateEntity()
	require.NoError(t, ecs.Add(s.world, spawner, component.SpawnerComponent, component.Spawner{
		Requests: []component.SpawnRequest{
			{Prefab: "ball.yaml", At: 0.055, X: 10, Y: 10, VelocityX: 30},
			{Prefab: "missing.yaml", At: 0.06},
			{Prefab: "crate.yaml", At: 1},
		},
	}))

	s.run(2)
	assert.Empty(t, s.world.Query(component.PropComponent.Kind()))

	s.run(2)
	props := s.world.Query(component.PropComponent.Kind())
	require.Len(t, props, 1)
	prop, _ := ecs.Get(s.world, props[0], component.PropComponent)
	assert.Equal(t, "ball", prop.Name)

	var spawned []ecs.Entity
	for _, evt := range s.world.Events().Peek() {
		if evt.Type == EventPropSpawned {
			spawned = append(spawned, evt.Data.(ecs.Entity))
		}
	}
	assert.Equal(t, props, spawned)

	body, _ := ecs.Get(s.world, props[0], component.PhysicsBodyComponent)
	require.NotNil(t, body.Body)
	assert.InDelta(t, 30, body.Body.Velocity().X, 1e-6)

	sp, _ := ecs.Get(s.world, spawner, component.SpawnerComponent)
	assert.Equal(t, 2, sp.Next, "a failed spawn is skipped, not retried")
}

func TestRagdollSystemPublishesTransitions(t *testing.T) {
	s := newSim(t, 0)
	e, err := entity.BuildRagdoll(s.world, "humanoid.yaml", nil, s.physics.Space(), s.physics.Registry(), nil)
	require.NoError(t, err)

	comp, ok := ecs.Get(s.world, e, component.RagdollComponent)
	require.True(t, ok)
	r := comp.Rig

	s.run(1)
	assert.Empty(t, RagdollEvents(s.world))

	r.Controller().Observe(collision.Contact{Joint: "Spine", Categories: []string{"Prop"}, Impulse: 1000})
	s.run(1)
	events := RagdollEvents(s.world)
	require.Len(t, events, r.Binding().Len())
	for _, evt := range events {
		assert.Equal(t, e, evt.Entity)
		assert.Equal(t, r.ID(), evt.Rig)
		assert.Equal(t, strength.Driven, evt.From)
		assert.Equal(t, strength.Loosened, evt.To)
		assert.Equal(t, s.world.Tick(), evt.Tick)
	}

	tr, ok := ecs.Get(s.world, e, component.TransformComponent)
	require.True(t, ok)
	// The transform is taken before the space steps.
	root := r.SlavePose()[0]
	assert.InDelta(t, root.Position[0], tr.X, 2)
	assert.InDelta(t, root.Position[1], tr.Y, 2)
}

func TestRagdollClosedWhenEntityDies(t *testing.T) {
	s := newSim(t, 0)
	baseline := countBodies(s.physics.Space())

	e, err := entity.BuildRagdoll(s.world, "humanoid.yaml", &prefabs.Vec2Spec{X: 100, Y: 100}, s.physics.Space(), s.physics.Registry(), nil)
	require.NoError(t, err)
	comp, _ := ecs.Get(s.world, e, component.RagdollComponent)
	assert.Equal(t, baseline+comp.Rig.Binding().Len(), countBodies(s.physics.Space()))

	s.run(1)
	s.world.DestroyEntity(e)
	s.run(1)
	assert.True(t, comp.Rig.Closed())
	assert.Equal(t, baseline, countBodies(s.physics.Space()))
}

func TestBuildScenario(t *testing.T) {
	s := newSim(t, 900)
	spec, err := prefabs.LoadScenarioSpec("scenario.yaml")
	require.NoError(t, err)

	sc, err := entity.BuildScenario(s.world, spec, s.physics.Space(), s.physics.Registry(), nil)
	require.NoError(t, err)
	assert.Len(t, sc.Ground, 1)
	assert.Len(t, sc.Rigs, 1)

	sp, ok := ecs.Get(s.world, sc.Spawner, component.SpawnerComponent)
	require.True(t, ok)
	require.Len(t, sp.Requests, 2)
	assert.Equal(t, "crate.yaml", sp.Requests[0].Prefab)

	s.run(70)
	assert.Len(t, s.world.Query(component.PropComponent.Kind()), 1)
}
