package main

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/milk9111/ragdoll/ecs/system"
	"github.com/milk9111/ragdoll/prefabs"
	"github.com/milk9111/ragdoll/sim"
	"go.uber.org/zap"
	"golang.org/x/image/colornames"
)

const (
	baseWidth  = 960
	baseHeight = 540

	launchSpeed = 700
)

type Game struct {
	frames int
	paused bool
	debug  bool

	logger  *zap.Logger
	sim     *sim.Sim
	render  *system.RenderSystem
	watcher *prefabs.Watcher
	status  string
}

func NewGame(scenario string, debug, watch bool, logger *zap.Logger) (*Game, error) {
	s, err := sim.New(sim.Options{Scenario: scenario, Logger: logger})
	if err != nil {
		return nil, err
	}
	g := &Game{debug: debug, logger: logger, sim: s, render: system.NewRenderSystem()}
	if watch {
		w, err := prefabs.NewWatcher(logger, prefabs.Dir, filepath.Join(prefabs.Dir, "scripts"))
		if err != nil {
			logger.Warn("hot reload disabled", zap.String("dir", prefabs.Dir), zap.Error(err))
		} else {
			g.watcher = w
		}
	}
	return g, nil
}

func (g *Game) Close() {
	if g.watcher != nil {
		_ = g.watcher.Close()
	}
	g.sim.Close()
}

func (g *Game) Update() error {
	g.frames++
	g.reload()

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyD) {
		g.debug = !g.debug
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		for _, r := range g.sim.Rigs() {
			if err := r.Reset(); err != nil {
				g.logger.Warn("rig reset failed", zap.String("rig", r.ID().String()), zap.Error(err))
			}
		}
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.launch("crate.yaml")
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		g.launch("ball.yaml")
	}

	if g.paused && !inpututil.IsKeyJustPressed(ebiten.KeyN) {
		return nil
	}
	events, err := g.sim.Step()
	if err != nil {
		return err
	}
	for _, evt := range events {
		g.logger.Debug("joint strength state changed",
			zap.String("joint", evt.Joint),
			zap.Stringer("to", evt.To),
			zap.Float64("strength", evt.Strength),
		)
	}
	return nil
}

func (g *Game) reload() {
	if g.watcher == nil {
		return
	}
	for {
		select {
		case change := <-g.watcher.Events:
			if err := g.sim.Apply(change); err != nil {
				g.status = fmt.Sprintf("reload %s failed: %v", change.Name(), err)
				g.logger.Warn("hot reload rejected", zap.String("path", change.Path), zap.Error(err))
				continue
			}
			g.status = "reloaded " + change.Name()
		case err := <-g.watcher.Errors:
			g.logger.Warn("prefab watcher error", zap.Error(err))
		default:
			return
		}
	}
}

// launch throws a prop from the cursor at the nearest rig.
func (g *Game) launch(prefab string) {
	cx, cy := ebiten.CursorPosition()
	from := mgl64.Vec2{float64(cx), float64(cy)}

	target := from.Add(mgl64.Vec2{0, 1})
	best := math.Inf(1)
	for _, r := range g.sim.Rigs() {
		root := r.SlavePose()[0].Position
		if d := root.Sub(from).Len(); d < best {
			best, target = d, root
		}
	}
	dir := target.Sub(from)
	if dir.Len() < 1e-6 {
		dir = mgl64.Vec2{0, 1}
	}
	vel := dir.Normalize().Mul(launchSpeed)

	if _, err := g.sim.Launch(prefab, from[0], from[1], vel[0], vel[1]); err != nil {
		g.logger.Warn("launch failed", zap.String("prefab", prefab), zap.Error(err))
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Midnightblue)
	w := g.sim.World()
	g.render.Draw(w, screen)

	if g.debug {
		system.DrawPhysicsDebug(g.sim.Physics().Space(), screen, g.render.View)
		system.DrawRagdollDebug(w, screen, g.render.View)
	}

	hud := fmt.Sprintf("%s  t=%.2fs  FPS: %.1f\nLMB crate  RMB ball  R reset  P pause  N step  D debug",
		g.sim.Scenario().Name, w.Time(), ebiten.ActualFPS())
	if g.paused {
		hud += "\nPAUSED"
	}
	if g.status != "" {
		hud += "\n" + g.status
	}
	ebitenutil.DebugPrint(screen, hud)
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return baseWidth, baseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}
