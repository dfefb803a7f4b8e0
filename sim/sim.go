package sim

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/common"
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
	"github.com/milk9111/ragdoll/ecs/entity"
	"github.com/milk9111/ragdoll/ecs/system"
	"github.com/milk9111/ragdoll/prefabs"
	"github.com/milk9111/ragdoll/rig"
	"github.com/milk9111/ragdoll/strength"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("sim: closed")

// DefaultScenario is the embedded scenario used when none is named.
const DefaultScenario = "scenario.yaml"

type Options struct {
	Scenario string
	// Gravity overrides the scenario gravity when non-nil.
	Gravity *float64
	Logger  *zap.Logger
}

// Sim wires a scenario into an ECS world: ragdolls, props and ground sharing
// one physics space.
type Sim struct {
	logger    *zap.Logger
	spec      *prefabs.ScenarioSpec
	world     *ecs.World
	physics   *system.PhysicsSystem
	ragdolls  *system.RagdollSystem
	scheduler *ecs.Scheduler
	scenario  *entity.Scenario
	closed    bool
}

func New(opts Options) (*Sim, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Scenario == "" {
		opts.Scenario = DefaultScenario
	}
	logger := opts.Logger.Named("sim")

	spec, err := prefabs.LoadScenarioSpec(opts.Scenario)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	gravity := spec.Gravity
	if gravity == 0 {
		gravity = common.Gravity
	}
	if opts.Gravity != nil {
		gravity = *opts.Gravity
	}

	registry, err := collision.NewRegistry()
	if err != nil {
		return nil, err
	}

	s := &Sim{
		logger:   logger,
		spec:     spec,
		world:    ecs.NewWorld(spec.Timestep),
		physics:  system.NewPhysicsSystem(registry, gravity, opts.Logger),
		ragdolls: system.NewRagdollSystem(opts.Logger),
	}
	s.scheduler = ecs.NewScheduler(
		system.NewSpawnSystem(opts.Logger),
		s.ragdolls,
		s.physics,
		system.NewTTLSystem(),
	)

	s.scenario, err = entity.BuildScenario(s.world, spec, s.physics.Space(), registry, opts.Logger)
	if err != nil {
		s.physics.Close()
		return nil, fmt.Errorf("sim: %w", err)
	}

	logger.Info("scenario loaded",
		zap.String("scenario", spec.Name),
		zap.Float64("gravity", gravity),
		zap.Float64("dt", s.world.DT()),
		zap.Int("rigs", len(s.scenario.Rigs)),
		zap.Int("spawns", len(spec.Spawns)),
	)
	return s, nil
}

// Step advances the world one fixed timestep and returns the ragdoll state
// changes it produced.
func (s *Sim) Step() ([]system.RagdollStateEvent, error) {
	if s.closed {
		return nil, ErrClosed
	}
	s.scheduler.Update(s.world)
	return system.RagdollEvents(s.world), nil
}

// Run steps until the scenario duration has elapsed or ctx is done. A
// non-positive duration falls back to the scenario's own.
func (s *Sim) Run(ctx context.Context, duration float64, onEvent func(system.RagdollStateEvent)) error {
	if duration <= 0 {
		duration = s.spec.Duration
	}
	for s.world.Time() < duration {
		if err := ctx.Err(); err != nil {
			return err
		}
		events, err := s.Step()
		if err != nil {
			return err
		}
		if onEvent != nil {
			for _, evt := range events {
				onEvent(evt)
			}
		}
	}
	return nil
}

// Launch throws a prop prefab into the scene.
func (s *Sim) Launch(prefab string, x, y, vx, vy float64) (ecs.Entity, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return entity.BuildProp(s.world, prefab, x, y, vx, vy)
}

// Apply pushes an on-disk prefab or script edit into the live rigs that use
// it. Rigs keep their per-joint state across the reload.
func (s *Sim) Apply(change prefabs.Change) error {
	if s.closed {
		return ErrClosed
	}
	var errs []error
	applied := 0
	ecs.ForEach(s.world, component.RagdollComponent, func(e ecs.Entity, comp component.Ragdoll) {
		if comp.Rig == nil || comp.Rig.Closed() {
			return
		}
		ok, err := s.apply(comp, change)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", comp.Prefab, err))
			return
		}
		if ok {
			applied++
		}
	})
	s.logger.Info("prefab change applied",
		zap.String("path", change.Path),
		zap.Int("rigs", applied),
		zap.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

func (s *Sim) apply(comp component.Ragdoll, change prefabs.Change) (bool, error) {
	switch change.Kind {
	case prefabs.SpecChange:
		if filepath.Base(comp.Prefab) != filepath.Base(change.Path) {
			return false, nil
		}
		spec, err := prefabs.LoadRigSpec(comp.Prefab)
		if err != nil {
			return false, err
		}
		return true, comp.Rig.Reconfigure(spec.Strength.Config(), spec.Follow.Gains())
	case prefabs.ScriptChange:
		spec, err := prefabs.LoadRigSpec(comp.Prefab)
		if err != nil {
			return false, err
		}
		if spec.ImpactScript == "" || filepath.Base(spec.ImpactScript) != filepath.Base(change.Path) {
			return false, nil
		}
		src, err := prefabs.LoadScript(spec.ImpactScript)
		if err != nil {
			return false, err
		}
		script, err := strength.CompileImpactScript(spec.ImpactScript, src)
		if err != nil {
			return false, err
		}
		return true, comp.Rig.SetImpactScript(script)
	}
	return false, nil
}

// Rigs lists the live rigs in entity order.
func (s *Sim) Rigs() []*rig.Rig {
	var out []*rig.Rig
	ecs.ForEach(s.world, component.RagdollComponent, func(_ ecs.Entity, comp component.Ragdoll) {
		if comp.Rig != nil && !comp.Rig.Closed() {
			out = append(out, comp.Rig)
		}
	})
	return out
}

func (s *Sim) World() *ecs.World { return s.world }
func (s *Sim) Physics() *system.PhysicsSystem { return s.physics }
func (s *Sim) Scenario() *prefabs.ScenarioSpec { return s.spec }

func (s *Sim) Close() {
	if s == nil || s.closed {
		return
	}
	for _, r := range s.Rigs() {
		r.Close()
	}
	s.closed = true
	s.ragdolls.Close()
	s.physics.Close()
	s.logger.Info("sim closed", zap.Uint64("ticks", s.world.Tick()), zap.Float64("time", s.world.Time()))
}
