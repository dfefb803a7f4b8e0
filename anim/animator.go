package anim

import (
	"github.com/milk9111/ragdoll/common"
	"github.com/milk9111/ragdoll/skeleton"
	"go.uber.org/zap"
)

// Animator plays a clip on the master hierarchy and exposes its world pose.
type Animator struct {
	hierarchy *skeleton.Hierarchy
	clip      *Clip
	clock     float64
	bind      []skeleton.Transform
	locals    []skeleton.Transform
	pose      []skeleton.Transform
	logger    *zap.Logger
}

// NewAnimator starts at time zero. Tracks naming bones that are not in the
// hierarchy are dropped with a warning. A nil clip holds the bind pose.
func NewAnimator(h *skeleton.Hierarchy, clip *Clip, logger *zap.Logger) *Animator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Animator{
		hierarchy: h,
		bind:      h.BindLocals(),
		locals:    h.BindLocals(),
		logger:    logger.Named("anim"),
	}
	a.SetClip(clip)
	return a
}

func (a *Animator) SetClip(clip *Clip) {
	if clip != nil {
		kept := make(map[string][]Keyframe, len(clip.Tracks))
		for bone, keys := range clip.Tracks {
			if _, ok := a.hierarchy.Index(bone); !ok {
				a.logger.Warn("clip track references unknown bone; dropping",
					zap.String("clip", clip.Name),
					zap.String("bone", bone),
				)
				continue
			}
			kept[bone] = keys
		}
		clip = &Clip{Name: clip.Name, Duration: clip.Duration, Loop: clip.Loop, Tracks: kept}
	}
	a.clip = clip
	a.clock = 0
	a.sample()
}

func (a *Animator) Clip() *Clip {
	return a.clip
}

func (a *Animator) Time() float64 {
	return a.clock
}

// Advance moves the clock forward. A non-positive dt keeps the current pose.
func (a *Animator) Advance(dt float64) {
	if dt <= 0 || !common.IsFinite(dt) {
		return
	}
	a.clock += dt
	a.sample()
}

func (a *Animator) sample() {
	for i := range a.locals {
		bone := a.hierarchy.Bone(i)
		a.locals[i] = a.clip.Sample(a.clock, bone.Name, a.bind[i])
	}
	a.pose = a.hierarchy.WorldPose(a.locals, a.pose)
}

// Pose returns the current world pose indexed by master bone. The slice is
// owned by the animator and must not be modified.
func (a *Animator) Pose() []skeleton.Transform {
	return a.pose
}

func (a *Animator) Hierarchy() *skeleton.Hierarchy {
	return a.hierarchy
}
