package prefabs

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/milk9111/ragdoll/strength"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := Dir
	Dir = dir
	t.Cleanup(func() { Dir = prev })
	return dir
}

func TestHumanoidSlaveAliasesMaster(t *testing.T) {
	spec, err := LoadRigSpec("humanoid.yaml")
	require.NoError(t, err)
	require.NotNil(t, spec.Master)
	require.NotNil(t, spec.Slave)

	master, slave := spec.Master.Def(), spec.Slave.Def()
	assert.Equal(t, master, slave)
	assert.Equal(t, "Hips", master.Name)
	assert.Equal(t, []string{"Terrain"}, spec.DontLoseStrengthLayerMask)
	assert.Equal(t, 480.0, spec.Position.X)
	assert.Equal(t, color.NRGBA{R: 0xe0, G: 0xb0, B: 0x50, A: 0xff}, spec.Color.Color)
}

func TestStrengthSpecOverlaysDefaults(t *testing.T) {
	var nilSpec *StrengthSpec
	assert.Equal(t, strength.DefaultConfig(), nilSpec.Config())

	floor := 0.4
	cfg := (&StrengthSpec{Scope: "joint", Floor: &floor}).Config()
	assert.Equal(t, strength.ScopeJoint, cfg.Scope)
	assert.Equal(t, 0.4, cfg.Floor)
	assert.Equal(t, strength.DefaultConfig().DecayRate, cfg.DecayRate)
}

func TestIdleClipConverts(t *testing.T) {
	spec, err := LoadClipSpec("idle.yaml")
	require.NoError(t, err)
	clip, err := spec.Clip()
	require.NoError(t, err)
	assert.Equal(t, "idle", clip.Name)

	var none *ClipSpec
	clip, err = none.Clip()
	assert.NoError(t, err)
	assert.Nil(t, clip)
}

func TestDiskOverridesEmbedded(t *testing.T) {
	dir := useDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crate.yaml"), []byte("name: heavy\n"), 0o644))

	spec, err := LoadEntityBuildSpec("prefabs/crate.yaml")
	require.NoError(t, err)
	assert.Equal(t, "heavy", spec.Name)
	_, ok := ModTime("crate.yaml")
	assert.True(t, ok)

	// Files missing on disk still come from the embedded set.
	spec, err = LoadEntityBuildSpec("ball.yaml")
	require.NoError(t, err)
	assert.Equal(t, "ball", spec.Name)
	_, ok = ModTime("ball.yaml")
	assert.False(t, ok)
}

func TestLoadScriptPaths(t *testing.T) {
	for _, name := range []string{"impact.tengo", "scripts/impact.tengo", "prefabs/scripts/impact.tengo"} {
		src, err := LoadScript(name)
		require.NoError(t, err, name)
		assert.Contains(t, string(src), "loss", name)
	}
}

func TestDecodeComponentSpec(t *testing.T) {
	spec, err := LoadEntityBuildSpec("ball.yaml")
	require.NoError(t, err)

	body, err := DecodeComponentSpec[PhysicsBodyComponentSpec](spec.Components["physics_body"])
	require.NoError(t, err)
	assert.Equal(t, 10.0, body.Radius)
	assert.Equal(t, 0.6, body.Elasticity)

	empty, err := DecodeComponentSpec[TTLComponentSpec](nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Seconds)
}

func TestBadColorRejected(t *testing.T) {
	dir := useDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\ncolor: \"#12\"\n"), 0o644))
	_, err := LoadRigSpec("bad.yaml")
	assert.ErrorContains(t, err, "invalid color")
}

func TestScenarioSpec(t *testing.T) {
	spec, err := LoadScenarioSpec("scenario.yaml")
	require.NoError(t, err)
	assert.Equal(t, 900.0, spec.Gravity)
	require.Len(t, spec.Ground, 1)
	assert.Equal(t, "Terrain", spec.Ground[0].Layer)
	require.Len(t, spec.Spawns, 2)
	assert.Equal(t, 300.0, spec.Spawns[0].Velocity.Y)
}
