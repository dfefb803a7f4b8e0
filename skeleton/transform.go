package skeleton

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a bone frame in 2D: translation, rotation in radians and scale.
// A zero Scale is treated as unit scale.
type Transform struct {
	Position mgl64.Vec2
	Rotation float64
	Scale    mgl64.Vec2
}

func Identity() Transform {
	return Transform{Scale: mgl64.Vec2{1, 1}}
}

func (t Transform) scale() mgl64.Vec2 {
	if t.Scale[0] == 0 && t.Scale[1] == 0 {
		return mgl64.Vec2{1, 1}
	}
	return t.Scale
}

// Matrix returns the homogeneous 2D matrix T * R * S.
func (t Transform) Matrix() mgl64.Mat3 {
	s := t.scale()
	return mgl64.Translate2D(t.Position[0], t.Position[1]).
		Mul3(mgl64.HomogRotate2D(t.Rotation)).
		Mul3(mgl64.Scale2D(s[0], s[1]))
}

// TransformFromMatrix decomposes a homogeneous 2D matrix without shear.
func TransformFromMatrix(m mgl64.Mat3) Transform {
	sx := math.Hypot(m[0], m[1])
	sy := 0.0
	if sx > 0 {
		sy = (m[0]*m[4] - m[3]*m[1]) / sx
	}
	return Transform{
		Position: mgl64.Vec2{m[6], m[7]},
		Rotation: math.Atan2(m[1], m[0]),
		Scale:    mgl64.Vec2{sx, sy},
	}
}

// Mul composes parent * child.
func (t Transform) Mul(child Transform) Transform {
	return TransformFromMatrix(t.Matrix().Mul3(child.Matrix()))
}

// Apply maps a point from this frame into its parent space.
func (t Transform) Apply(p mgl64.Vec2) mgl64.Vec2 {
	return t.Matrix().Mul3x1(p.Vec3(1)).Vec2()
}
