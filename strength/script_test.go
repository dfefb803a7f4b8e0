package strength

import (
	"testing"

	"github.com/milk9111/ragdoll/collision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const impulseScript = `
text := import("text")

loss := 0.5
if impulse > 10 {
	loss = 1.0
}
for c in categories {
	if text.has_prefix(c, "Soft") {
		loss = 0.0
	}
}
`

func TestImpactScriptLoss(t *testing.T) {
	s, err := CompileImpactScript("impulse.tengo", []byte(impulseScript))
	require.NoError(t, err)
	assert.Equal(t, "impulse.tengo", s.Name())

	cases := []struct {
		name    string
		contact collision.Contact
		want    float64
	}{
		{"light_hit", collision.Contact{Joint: "Hips", Categories: []string{"Prop"}, Impulse: 2}, 0.5},
		{"heavy_hit", collision.Contact{Joint: "Hips", Categories: []string{"Prop"}, Impulse: 50}, 1},
		{"soft_prop", collision.Contact{Joint: "Hips", Categories: []string{"SoftProp"}, Impulse: 50}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := s.Loss(c.contact)
			require.NoError(t, err)
			assert.InDelta(t, c.want, got, 1e-9)
		})
	}
}

func TestImpactScriptClampsAndValidates(t *testing.T) {
	s, err := CompileImpactScript("big.tengo", []byte(`loss := impulse * 100`))
	require.NoError(t, err)
	got, err := s.Loss(collision.Contact{Impulse: 3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	_, err = CompileImpactScript("none.tengo", []byte(`x := 1`))
	assert.ErrorIs(t, err, ErrScriptMissingLoss)

	_, err = CompileImpactScript("broken.tengo", []byte(`loss := (`))
	assert.Error(t, err)
}

func TestControllerUsesImpactScript(t *testing.T) {
	s, err := CompileImpactScript("impulse.tengo", []byte(impulseScript))
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.DecayRate = 0
	c := newController(t, cfg, WithImpactScript(s))

	hitBy(c, "Hips", "Prop") // impulse 5 -> loss 0.5
	c.Update(tick)
	assert.InDelta(t, 1-0.5*(1-cfg.Floor), c.Strength(0), 1e-9)

	hitBy(c, "Hips", "SoftProp")
	c.Update(tick)
	assert.InDelta(t, 0.6, c.Strength(0), 1e-9, "zero loss contacts are ignored")
}

func TestImpactScriptRuntimeFailuresAreErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		// int(impulse - 3) is zero only for the contact below.
		{"divide_by_zero", `loss := 0.0; if 10 / int(impulse - 3) > 100 { loss = 0.5 }`},
		{"infinite", `zero := 0.0; loss := 0.0; if impulse > 1 { loss = impulse / zero }`},
		{"endless_loop", `loss := 0.0; for impulse > 1 { loss = 0.5 }`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, err := CompileImpactScript(c.name+".tengo", []byte(c.src))
			require.NoError(t, err)

			var loss float64
			require.NotPanics(t, func() {
				loss, err = s.Loss(collision.Contact{Joint: "Hips", Categories: []string{"Prop"}, Impulse: 3})
			})
			assert.Error(t, err)
			assert.Equal(t, 0.0, loss)
		})
	}
}
