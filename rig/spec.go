package rig

import (
	"fmt"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/prefabs"
	"github.com/milk9111/ragdoll/skeleton"
	"github.com/milk9111/ragdoll/strength"
	"go.uber.org/zap"
)

// FromSpec resolves a rig prefab into a Config: both bone trees placed at the
// spec position, tuning overlaid on defaults, and the clip and impact script
// loaded by name.
func FromSpec(spec *prefabs.RigSpec, space *cp.Space, registry *collision.Registry, logger *zap.Logger) (Config, error) {
	if spec == nil || spec.Master == nil {
		return Config{}, ErrNilRoot
	}
	slaveSpec := spec.Slave
	if slaveSpec == nil {
		slaveSpec = spec.Master
	}

	master, err := placedHierarchy(*spec.Master, spec.Position)
	if err != nil {
		return Config{}, fmt.Errorf("rig: %s master: %w", spec.Name, err)
	}
	slave, err := placedHierarchy(*slaveSpec, spec.Position)
	if err != nil {
		return Config{}, fmt.Errorf("rig: %s slave: %w", spec.Name, err)
	}

	cfg := Config{
		MasterRoot:                master,
		SlaveRoot:                 slave,
		DontLoseStrengthLayerMask: spec.DontLoseStrengthLayerMask,
		SlaveController:           spec.Strength.Config(),
		AnimFollow:                spec.Follow.Gains(),
		Space:                     space,
		Registry:                  registry,
		Category:                  spec.Category,
		Logger:                    logger,
	}

	if spec.Clip != "" {
		clipSpec, err := prefabs.LoadClipSpec(spec.Clip)
		if err != nil {
			return Config{}, fmt.Errorf("rig: %s clip: %w", spec.Name, err)
		}
		if cfg.Clip, err = clipSpec.Clip(); err != nil {
			return Config{}, fmt.Errorf("rig: %s clip: %w", spec.Name, err)
		}
	}

	if spec.ImpactScript != "" {
		src, err := prefabs.LoadScript(spec.ImpactScript)
		if err != nil {
			return Config{}, fmt.Errorf("rig: %s impact script: %w", spec.Name, err)
		}
		if cfg.ImpactScript, err = strength.CompileImpactScript(spec.ImpactScript, src); err != nil {
			return Config{}, fmt.Errorf("rig: %s: %w", spec.Name, err)
		}
	}

	return cfg, nil
}

// Load reads a rig prefab by name and builds it.
func Load(name string, space *cp.Space, registry *collision.Registry, logger *zap.Logger) (*Rig, error) {
	spec, err := prefabs.LoadRigSpec(name)
	if err != nil {
		return nil, err
	}
	cfg, err := FromSpec(spec, space, registry, logger)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

func placedHierarchy(root prefabs.BoneSpec, at prefabs.Vec2Spec) (*skeleton.Hierarchy, error) {
	def := root.Def()
	def.Offset = def.Offset.Add(at.Vec())
	return skeleton.NewHierarchy(def)
}
