package sim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
	"github.com/milk9111/ragdoll/ecs/system"
	"github.com/milk9111/ragdoll/prefabs"
	"github.com/milk9111/ragdoll/strength"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunDefaultScenario(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, s.Rigs(), 1)
	require.NoError(t, s.Run(context.Background(), 2, nil))
	assert.GreaterOrEqual(t, s.World().Time(), 2.0)
	assert.NotEmpty(t, s.World().Query(component.PropComponent.Kind()), "the crate is due at 1s")

	r := s.Rigs()[0]
	for j := 0; j < r.Binding().Len(); j++ {
		st := r.Controller().Strength(j)
		assert.GreaterOrEqual(t, st, r.Controller().Config().Floor-1e-9)
		assert.LessOrEqual(t, st, 1.0)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx, 10, nil), context.Canceled)
	assert.Zero(t, s.World().Tick())
}

func TestClosedSim(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	r := s.Rigs()[0]
	s.Close()
	s.Close()

	assert.True(t, r.Closed())
	_, err = s.Step()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Launch("ball.yaml", 0, 0, 0, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGravityOverride(t *testing.T) {
	zero := 0.0
	s, err := New(Options{Gravity: &zero})
	require.NoError(t, err)
	defer s.Close()

	ball, err := s.Launch("ball.yaml", 100, 100, 0, 0)
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}
	tr, ok := ecs.Get(s.World(), ball, component.TransformComponent)
	require.True(t, ok)
	assert.InDelta(t, 100, tr.Y, 1e-6)
}

func TestApplyReconfiguresMatchingRigs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s, err := New(Options{Logger: zap.New(core)})
	require.NoError(t, err)
	defer s.Close()

	dir := t.TempDir()
	prev := prefabs.Dir
	prefabs.Dir = dir
	t.Cleanup(func() { prefabs.Dir = prev })

	src, err := prefabs.Load("humanoid.yaml")
	require.NoError(t, err)
	edited := strings.Replace(string(src), "floor: 0.2", "floor: 0.35", 1)
	require.NotEqual(t, string(src), edited)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "humanoid.yaml"), []byte(edited), 0o644))

	require.NoError(t, s.Apply(prefabs.Change{Path: filepath.Join(dir, "humanoid.yaml"), Kind: prefabs.SpecChange}))
	assert.Equal(t, 0.35, s.Rigs()[0].Controller().Config().Floor)
	assert.Equal(t, 1, logs.FilterMessage("prefab change applied").Len())

	// Unrelated prefabs leave the rig alone.
	require.NoError(t, s.Apply(prefabs.Change{Path: filepath.Join(dir, "crate.yaml"), Kind: prefabs.SpecChange}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "humanoid.yaml"), []byte("strength: {floor: 3}\nmaster: {name: Hips}\n"), 0o644))
	err = s.Apply(prefabs.Change{Path: filepath.Join(dir, "humanoid.yaml"), Kind: prefabs.SpecChange})
	assert.ErrorIs(t, err, strength.ErrInvalidConfig)
	assert.Equal(t, 0.35, s.Rigs()[0].Controller().Config().Floor, "a bad edit keeps the last good tuning")
}

func TestApplyReplacesImpactScript(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	defer s.Close()

	dir := t.TempDir()
	prev := prefabs.Dir
	prefabs.Dir = dir
	t.Cleanup(func() { prefabs.Dir = prev })
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "impact.tengo"), []byte("loss := 0.0\n"), 0o644))

	require.NoError(t, s.Apply(prefabs.Change{Path: filepath.Join(dir, "scripts", "impact.tengo"), Kind: prefabs.ScriptChange}))

	// Every contact now weighs nothing, so nothing loosens.
	r := s.Rigs()[0]
	r.Controller().Observe(collision.Contact{Joint: "Spine", Categories: []string{"Prop"}, Impulse: 1000})
	events, err := s.Step()
	require.NoError(t, err)
	assert.Empty(t, filterLoosened(events))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "impact.tengo"), []byte("x := 1\n"), 0o644))
	assert.ErrorIs(t, s.Apply(prefabs.Change{Path: filepath.Join(dir, "scripts", "impact.tengo"), Kind: prefabs.ScriptChange}), strength.ErrScriptMissingLoss)
}

func filterLoosened(events []system.RagdollStateEvent) []system.RagdollStateEvent {
	var out []system.RagdollStateEvent
	for _, e := range events {
		if e.To == strength.Loosened {
			out = append(out, e)
		}
	}
	return out
}
