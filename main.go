package main

import (
	"flag"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/milk9111/ragdoll/observability"
	"github.com/milk9111/ragdoll/prefabs"
	"go.uber.org/zap"
)

func main() {
	scenario := flag.String("scenario", "", "scenario prefab (default scenario.yaml)")
	debug := flag.Bool("debug", false, "start with the physics and strength overlay on")
	watch := flag.Bool("watch", true, "hot reload rig tuning and impact scripts")
	prefabDir := flag.String("prefabs", prefabs.Dir, "directory whose prefabs shadow the embedded ones")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	cfg := observability.DefaultConfig()
	cfg.Level = *logLevel
	cfg.Name = "viewer"
	logger := observability.New(cfg)
	defer func() { _ = logger.Sync() }()

	prefabs.Dir = *prefabDir

	game, err := NewGame(*scenario, *debug, *watch, logger)
	if err != nil {
		logger.Fatal("viewer setup failed", zap.Error(err))
	}
	defer game.Close()

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("ragdoll")

	if err := ebiten.RunGame(game); err != nil {
		logger.Error("viewer stopped", zap.Error(err))
	}
}
