package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/milk9111/ragdoll/prefabs"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keepPrefabDir(t *testing.T) {
	t.Helper()
	prev := prefabs.Dir
	t.Cleanup(func() { prefabs.Dir = prev })
}

func TestRunShortScenario(t *testing.T) {
	keepPrefabDir(t)
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--duration", "0.25", "--prefab-dir", t.TempDir(), "--log-level", "error"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
}

func TestRunHonoursCancel(t *testing.T) {
	keepPrefabDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--prefab-dir", t.TempDir(), "--log-level", "error"})
	assert.ErrorIs(t, cmd.ExecuteContext(ctx), context.Canceled)
}

func TestUnknownScenarioFails(t *testing.T) {
	keepPrefabDir(t)
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--scenario", "nope.yaml", "--prefab-dir", t.TempDir(), "--log-level", "error"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sim.yaml")
	require.NoError(t, os.WriteFile(file, []byte("duration: 3\nlogger:\n  level: debug\n  log_file: sim.log\n"), 0o644))
	t.Setenv("RAGDOLL_GRAVITY", "12.5")

	v := viper.New()
	cfg, err := loadConfig(v, file)
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.Duration)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "sim.log", cfg.Logger.LogFile)
	assert.Equal(t, "ragdoll", cfg.Logger.Name)
	require.NotNil(t, cfg.Gravity)
	assert.Equal(t, 12.5, *cfg.Gravity)
}
