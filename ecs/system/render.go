package system

import (
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/milk9111/ragdoll/common"
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
	"golang.org/x/image/colornames"
)

// RenderSystem draws ground, props and ragdolls in flat colours.
type RenderSystem struct {
	View DebugView
}

func NewRenderSystem() *RenderSystem {
	return &RenderSystem{View: DebugView{Zoom: 1}}
}

func (r *RenderSystem) Draw(w *ecs.World, screen *ebiten.Image) {
	if r == nil || w == nil || screen == nil {
		return
	}

	ecs.ForEach(w, component.SegmentComponent, func(_ ecs.Entity, seg component.Segment) {
		ax, ay := r.toScreen(seg.AX, seg.AY)
		bx, by := r.toScreen(seg.BX, seg.BY)
		width := float32(math.Max(seg.Thickness*2, 1) * r.View.zoom())
		vector.StrokeLine(screen, ax, ay, bx, by, width, colornames.Olivedrab, true)
	})

	for _, e := range w.Query(component.PropComponent.Kind(), component.PhysicsBodyComponent.Kind()) {
		prop, _ := ecs.Get(w, e, component.PropComponent)
		body, _ := ecs.Get(w, e, component.PhysicsBodyComponent)
		r.drawProp(screen, prop, body)
	}

	ecs.ForEach(w, component.RagdollComponent, func(_ ecs.Entity, comp component.Ragdoll) {
		r.drawRagdoll(screen, comp)
	})
}

func (r *RenderSystem) drawProp(screen *ebiten.Image, prop component.Prop, body component.PhysicsBody) {
	if body.Body == nil {
		return
	}
	clr := prop.Color
	if clr == nil {
		clr = colornames.White
	}
	pos := body.Body.Position()
	if body.Radius > 0 {
		x, y := r.toScreen(pos.X, pos.Y)
		vector.StrokeCircle(screen, x, y, float32(body.Radius*r.View.zoom()), 2, clr, true)
		return
	}

	sin, cos := math.Sincos(body.Body.Angle())
	hw, hh := body.Width/2, body.Height/2
	corners := [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	var pts [4][2]float32
	for i, c := range corners {
		x, y := r.toScreen(pos.X+c[0]*cos-c[1]*sin, pos.Y+c[0]*sin+c[1]*cos)
		pts[i] = [2]float32{x, y}
	}
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		vector.StrokeLine(screen, a[0], a[1], b[0], b[1], 2, clr, true)
	}
}

// drawRagdoll draws each slave bone, fading from the rig colour towards red as
// its joint loses strength.
func (r *RenderSystem) drawRagdoll(screen *ebiten.Image, comp component.Ragdoll) {
	rg := comp.Rig
	if rg == nil || rg.Closed() {
		return
	}
	base := comp.Color
	if base == nil {
		base = colornames.Wheat
	}
	slave := rg.Binding().Slave()
	pose := rg.SlavePose()
	for j, p := range rg.Binding().Pairs() {
		bone := slave.Bone(p.Slave)
		from := pose[p.Slave]
		to := from.Apply(mgl64.Vec2{bone.Length, 0})
		ax, ay := r.toScreen(from.Position[0], from.Position[1])
		bx, by := r.toScreen(to[0], to[1])
		width := float32(math.Max(bone.Width, 2) * r.View.zoom())
		vector.StrokeLine(screen, ax, ay, bx, by, width, mix(base, colornames.Red, 1-rg.Controller().Strength(j)), true)
	}
}

func (r *RenderSystem) toScreen(x, y float64) (float32, float32) {
	z := r.View.zoom()
	return float32((x - r.View.X) * z), float32((y - r.View.Y) * z)
}

func mix(a, b color.Color, t float64) color.Color {
	t = common.Clamp01(t)
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	lerp := func(x, y uint32) uint8 {
		return uint8(common.Lerp(float64(x>>8), float64(y>>8), t))
	}
	return color.RGBA{R: lerp(ar, br), G: lerp(ag, bg), B: lerp(ab, bb), A: lerp(aa, ba)}
}
