package skeleton

import "github.com/go-gl/mathgl/mgl64"

// WorldPose composes local transforms down the parent chain. out is reused
// when it has the right length. locals shorter than the hierarchy fall back to
// the bind pose for the missing bones.
func (h *Hierarchy) WorldPose(locals []Transform, out []Transform) []Transform {
	if len(out) != len(h.bones) {
		out = make([]Transform, len(h.bones))
	}
	worlds := make([]mgl64.Mat3, len(h.bones))
	for i, bone := range h.bones {
		local := bone.Local
		if i < len(locals) {
			local = locals[i]
		}
		m := local.Matrix()
		if bone.Parent >= 0 {
			m = worlds[bone.Parent].Mul3(m)
		}
		worlds[i] = m
		out[i] = TransformFromMatrix(m)
	}
	return out
}

// BodyFrame returns the centre frame of a bone given its world joint frame:
// half the bone length along its local X axis.
func BodyFrame(world Transform, bone Bone) Transform {
	centre := world.Apply(mgl64.Vec2{bone.Length / 2, 0})
	return Transform{Position: centre, Rotation: world.Rotation, Scale: world.Scale}
}

// JointFrame inverts BodyFrame.
func JointFrame(body Transform, bone Bone) Transform {
	joint := body.Apply(mgl64.Vec2{-bone.Length / 2, 0})
	return Transform{Position: joint, Rotation: body.Rotation, Scale: body.Scale}
}
