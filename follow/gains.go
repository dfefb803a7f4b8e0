package follow

import (
	"errors"
	"fmt"
	"math"

	"github.com/milk9111/ragdoll/common"
)

var ErrInvalidGains = errors.New("follow: invalid gains")

// Gains parameterise the PD drive. Stiffness and damping are per unit mass
// (or per unit moment for the angular terms), so bones of different mass
// settle at the same rate.
type Gains struct {
	Stiffness        float64
	Damping          float64
	AngularStiffness float64
	AngularDamping   float64
	MaxForce         float64
	MaxTorque        float64
}

// DefaultGains is critically damped with a settling time of roughly a third
// of a second.
func DefaultGains() Gains {
	const kp, kpAng = 400.0, 400.0
	return Gains{
		Stiffness:        kp,
		Damping:          2 * math.Sqrt(kp),
		AngularStiffness: kpAng,
		AngularDamping:   2 * math.Sqrt(kpAng),
		MaxForce:         50000,
		MaxTorque:        2e6,
	}
}

func (g Gains) Validate() error {
	if !common.IsFinite(g.Stiffness, g.Damping, g.AngularStiffness, g.AngularDamping, g.MaxForce, g.MaxTorque) {
		return fmt.Errorf("%w: non-finite value", ErrInvalidGains)
	}
	if g.Stiffness < 0 || g.Damping < 0 || g.AngularStiffness < 0 || g.AngularDamping < 0 {
		return fmt.Errorf("%w: gains must not be negative", ErrInvalidGains)
	}
	if g.MaxForce <= 0 || g.MaxTorque <= 0 {
		return fmt.Errorf("%w: max force and torque must be positive", ErrInvalidGains)
	}
	return nil
}
