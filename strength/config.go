package strength

import (
	"errors"
	"fmt"

	"github.com/milk9111/ragdoll/common"
)

var ErrInvalidConfig = errors.New("strength: invalid config")

// Scope selects whether a qualifying hit loosens only the struck joint or the
// whole ragdoll.
type Scope string

const (
	ScopeRagdoll Scope = "ragdoll"
	ScopeJoint   Scope = "joint"
)

// Config tunes the controller. Rates are per second, Cooldown is in seconds.
type Config struct {
	Scope Scope
	// Floor is the strength a fully weighted hit decays toward.
	Floor float64
	// DecayRate is the exponential decay rate toward the floor. Zero drops
	// strength to the floor immediately.
	DecayRate float64
	// Cooldown is how long a joint must go without a qualifying hit before
	// it starts recovering.
	Cooldown float64
	// RecoveryRate is the linear recovery rate toward full strength. Zero
	// restores full strength immediately.
	RecoveryRate float64
	// RestoreThreshold is the strength at which a loosened joint counts as
	// driven again.
	RestoreThreshold float64
}

func DefaultConfig() Config {
	return Config{
		Scope:            ScopeRagdoll,
		Floor:            0.2,
		DecayRate:        8,
		Cooldown:         1,
		RecoveryRate:     0.5,
		RestoreThreshold: 0.95,
	}
}

func (c Config) Validate() error {
	switch c.Scope {
	case ScopeRagdoll, ScopeJoint:
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidConfig, c.Scope)
	}
	if !common.IsFinite(c.Floor, c.DecayRate, c.Cooldown, c.RecoveryRate, c.RestoreThreshold) {
		return fmt.Errorf("%w: non-finite value", ErrInvalidConfig)
	}
	if c.Floor < 0 || c.Floor > 1 {
		return fmt.Errorf("%w: floor %v outside [0,1]", ErrInvalidConfig, c.Floor)
	}
	if c.RestoreThreshold < 0 || c.RestoreThreshold > 1 {
		return fmt.Errorf("%w: restore threshold %v outside [0,1]", ErrInvalidConfig, c.RestoreThreshold)
	}
	if c.DecayRate < 0 || c.Cooldown < 0 || c.RecoveryRate < 0 {
		return fmt.Errorf("%w: rates and cooldown must not be negative", ErrInvalidConfig)
	}
	return nil
}

// withDefaults fills the zero scope so partially written YAML still loads.
func (c Config) withDefaults() Config {
	if c.Scope == "" {
		c.Scope = ScopeRagdoll
	}
	return c
}
