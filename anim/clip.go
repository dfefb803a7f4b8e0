package anim

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/ragdoll/common"
	"github.com/milk9111/ragdoll/skeleton"
)

var ErrInvalidClip = errors.New("anim: invalid clip")

// Keyframe is a local bone pose at a point in time. A nil Position keeps the
// bone's bind offset.
type Keyframe struct {
	Time     float64
	Position *mgl64.Vec2
	Rotation float64
}

// Clip is a set of per-bone keyframe tracks.
type Clip struct {
	Name     string
	Duration float64
	Loop     bool
	Tracks   map[string][]Keyframe
}

// NewClip validates tracks and sorts their keys by time. A zero duration is
// taken from the latest key.
func NewClip(name string, duration float64, loop bool, tracks map[string][]Keyframe) (*Clip, error) {
	c := &Clip{Name: name, Duration: duration, Loop: loop, Tracks: make(map[string][]Keyframe, len(tracks))}
	last := 0.0
	for bone, keys := range tracks {
		if len(keys) == 0 {
			continue
		}
		sorted := append([]Keyframe(nil), keys...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
		for _, k := range sorted {
			if !common.IsFinite(k.Time, k.Rotation) || k.Time < 0 {
				return nil, fmt.Errorf("%w: %s track %q has a bad key at %v", ErrInvalidClip, name, bone, k.Time)
			}
			if k.Position != nil && !common.IsFinite(k.Position[0], k.Position[1]) {
				return nil, fmt.Errorf("%w: %s track %q has a non-finite position", ErrInvalidClip, name, bone)
			}
		}
		last = math.Max(last, sorted[len(sorted)-1].Time)
		c.Tracks[bone] = sorted
	}
	if c.Duration <= 0 {
		c.Duration = last
	}
	if !common.IsFinite(c.Duration) || c.Duration < 0 {
		return nil, fmt.Errorf("%w: %s duration %v", ErrInvalidClip, name, duration)
	}
	return c, nil
}

// Sample evaluates a bone's local transform at time t. Untracked bones keep
// the bind transform.
func (c *Clip) Sample(t float64, bone string, bind skeleton.Transform) skeleton.Transform {
	if c == nil {
		return bind
	}
	keys := c.Tracks[bone]
	if len(keys) == 0 {
		return bind
	}
	t = c.localTime(t)

	out := bind
	if t <= keys[0].Time {
		return applyKey(out, keys[0])
	}
	lastKey := keys[len(keys)-1]
	if t >= lastKey.Time {
		return applyKey(out, lastKey)
	}

	i := sort.Search(len(keys), func(i int) bool { return keys[i].Time > t })
	a, b := keys[i-1], keys[i]
	u := 0.0
	if span := b.Time - a.Time; span > 0 {
		u = (t - a.Time) / span
	}

	out.Rotation = a.Rotation + common.WrapAngle(b.Rotation-a.Rotation)*u
	pa, pb := bind.Position, bind.Position
	if a.Position != nil {
		pa = *a.Position
	}
	if b.Position != nil {
		pb = *b.Position
	}
	out.Position = mgl64.Vec2{common.Lerp(pa[0], pb[0], u), common.Lerp(pa[1], pb[1], u)}
	return out
}

func (c *Clip) localTime(t float64) float64 {
	if !c.Loop || c.Duration <= 0 {
		return t
	}
	t = math.Mod(t, c.Duration)
	if t < 0 {
		t += c.Duration
	}
	return t
}

func applyKey(t skeleton.Transform, k Keyframe) skeleton.Transform {
	t.Rotation = k.Rotation
	if k.Position != nil {
		t.Position = *k.Position
	}
	return t
}
