package entity

import (
	"fmt"
	"sort"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
	"github.com/milk9111/ragdoll/prefabs"
	"go.uber.org/zap"
)

// Scenario holds the entities a scenario spec produced.
type Scenario struct {
	Name    string
	Ground  []ecs.Entity
	Rigs    []ecs.Entity
	Spawner ecs.Entity
}

// BuildScenario lays out ground segments, places rigs and queues timed
// spawns. Anything built before a failure is destroyed again.
func BuildScenario(w *ecs.World, spec *prefabs.ScenarioSpec, space *cp.Space, registry *collision.Registry, logger *zap.Logger) (*Scenario, error) {
	if w == nil || spec == nil {
		return nil, fmt.Errorf("build scenario: world and spec are required")
	}
	if spec.Timestep > 0 {
		w.SetDT(spec.Timestep)
	}

	s := &Scenario{Name: spec.Name}
	fail := func(err error) (*Scenario, error) {
		s.destroy(w)
		return nil, fmt.Errorf("build scenario %q: %w", spec.Name, err)
	}

	for i, g := range spec.Ground {
		e, err := BuildGround(w, g)
		if err != nil {
			return fail(fmt.Errorf("ground %d: %w", i, err))
		}
		s.Ground = append(s.Ground, e)
	}

	for _, placement := range spec.Rigs {
		e, err := BuildRagdoll(w, placement.Prefab, placement.Position, space, registry, logger)
		if err != nil {
			return fail(err)
		}
		s.Rigs = append(s.Rigs, e)
	}

	requests := make([]component.SpawnRequest, 0, len(spec.Spawns))
	for _, sp := range spec.Spawns {
		requests = append(requests, component.SpawnRequest{
			Prefab:    sp.Prefab,
			At:        sp.At,
			X:         sp.Position.X,
			Y:         sp.Position.Y,
			VelocityX: sp.Velocity.X,
			VelocityY: sp.Velocity.Y,
		})
	}
	sort.SliceStable(requests, func(i, j int) bool { return requests[i].At < requests[j].At })

	s.Spawner = w.CreateEntity()
	if err := ecs.Add(w, s.Spawner, component.SpawnerComponent, component.Spawner{Requests: requests}); err != nil {
		return fail(err)
	}
	return s, nil
}

func (s *Scenario) destroy(w *ecs.World) {
	for _, e := range s.Rigs {
		if r, ok := ecs.Get(w, e, component.RagdollComponent); ok && r.Rig != nil {
			r.Rig.Close()
		}
		w.DestroyEntity(e)
	}
	for _, e := range s.Ground {
		w.DestroyEntity(e)
	}
	if s.Spawner != 0 {
		w.DestroyEntity(s.Spawner)
	}
}
