package prefabs

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/ragdoll/anim"
	"github.com/milk9111/ragdoll/follow"
	"github.com/milk9111/ragdoll/skeleton"
	"github.com/milk9111/ragdoll/strength"
)

func (v Vec2Spec) Vec() mgl64.Vec2 {
	return mgl64.Vec2{v.X, v.Y}
}

// Def converts a bone tree to its skeleton definition.
func (b BoneSpec) Def() skeleton.BoneDef {
	def := skeleton.BoneDef{
		Name:     b.Name,
		Offset:   b.Offset.Vec(),
		Rotation: b.Rotation,
		Length:   b.Length,
		Width:    b.Width,
		Mass:     b.Mass,
	}
	if b.Limit != nil {
		def.Limit = &skeleton.AngleLimit{Min: b.Limit.Min, Max: b.Limit.Max}
	}
	for _, c := range b.Children {
		def.Children = append(def.Children, c.Def())
	}
	return def
}

// Config overlays the YAML values onto the default controller tuning.
func (s *StrengthSpec) Config() strength.Config {
	cfg := strength.DefaultConfig()
	if s == nil {
		return cfg
	}
	if s.Scope != "" {
		cfg.Scope = strength.Scope(s.Scope)
	}
	overlay(&cfg.Floor, s.Floor)
	overlay(&cfg.DecayRate, s.DecayRate)
	overlay(&cfg.Cooldown, s.Cooldown)
	overlay(&cfg.RecoveryRate, s.RecoveryRate)
	overlay(&cfg.RestoreThreshold, s.RestoreThreshold)
	return cfg
}

// Gains overlays the YAML values onto the default follower gains.
func (f *FollowSpec) Gains() follow.Gains {
	g := follow.DefaultGains()
	if f == nil {
		return g
	}
	overlay(&g.Stiffness, f.Stiffness)
	overlay(&g.Damping, f.Damping)
	overlay(&g.AngularStiffness, f.AngularStiffness)
	overlay(&g.AngularDamping, f.AngularDamping)
	overlay(&g.MaxForce, f.MaxForce)
	overlay(&g.MaxTorque, f.MaxTorque)
	return g
}

func overlay(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func (c *ClipSpec) Clip() (*anim.Clip, error) {
	if c == nil {
		return nil, nil
	}
	tracks := make(map[string][]anim.Keyframe, len(c.Tracks))
	for bone, keys := range c.Tracks {
		out := make([]anim.Keyframe, 0, len(keys))
		for _, k := range keys {
			kf := anim.Keyframe{Time: k.Time, Rotation: k.Rotation}
			if k.Position != nil {
				p := k.Position.Vec()
				kf.Position = &p
			}
			out = append(out, kf)
		}
		tracks[bone] = out
	}
	clip, err := anim.NewClip(c.Name, c.Duration, c.Loop, tracks)
	if err != nil {
		return nil, fmt.Errorf("prefabs: clip %s: %w", c.Name, err)
	}
	return clip, nil
}
