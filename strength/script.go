package strength

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/common"
)

var ErrScriptMissingLoss = errors.New("strength: impact script does not define loss")

// scriptDeadline bounds one script run so a looping script cannot stall a tick.
const scriptDeadline = 50 * time.Millisecond

// ImpactScript weighs a qualifying contact with a tengo script. The script
// sees the globals categories (array of strings), impulse (float) and joint
// (string) and must assign loss, the fraction of (1 - floor) the hit may take
// away. Results are clamped to [0,1].
type ImpactScript struct {
	name     string
	compiled *tengo.Compiled
}

func CompileImpactScript(name string, src []byte) (*ImpactScript, error) {
	script := tengo.NewScript(src)
	_ = script.Add("categories", []interface{}{})
	_ = script.Add("impulse", 0.0)
	_ = script.Add("joint", "")
	script.SetImports(stdlib.GetModuleMap("math", "text"))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("strength: compile impact script %s: %w", name, err)
	}
	// Globals only resolve after a run.
	if err := run(compiled); err != nil {
		return nil, fmt.Errorf("strength: run impact script %s: %w", name, err)
	}
	if !compiled.IsDefined("loss") {
		return nil, fmt.Errorf("%w: %s", ErrScriptMissingLoss, name)
	}
	return &ImpactScript{name: name, compiled: compiled}, nil
}

func (s *ImpactScript) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Loss runs the script for one contact.
func (s *ImpactScript) Loss(c collision.Contact) (float64, error) {
	if s == nil || s.compiled == nil {
		return 1, nil
	}
	cats := make([]interface{}, 0, len(c.Categories))
	for _, cat := range c.Categories {
		cats = append(cats, cat)
	}
	if err := s.compiled.Set("categories", cats); err != nil {
		return 0, err
	}
	if err := s.compiled.Set("impulse", c.Impulse); err != nil {
		return 0, err
	}
	if err := s.compiled.Set("joint", c.Joint); err != nil {
		return 0, err
	}
	if err := run(s.compiled); err != nil {
		return 0, fmt.Errorf("strength: run impact script %s: %w", s.name, err)
	}
	loss := s.compiled.Get("loss").Float()
	if !common.IsFinite(loss) {
		return 0, fmt.Errorf("strength: impact script %s returned non-finite loss", s.name)
	}
	return common.Clamp01(loss), nil
}

// run executes the script under scriptDeadline. RunContext turns VM panics,
// such as an integer division by zero, into errors.
func run(compiled *tengo.Compiled) error {
	ctx, cancel := context.WithTimeout(context.Background(), scriptDeadline)
	defer cancel()
	return compiled.RunContext(ctx)
}
