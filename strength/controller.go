package strength

import (
	"math"

	"github.com/milk9111/ragdoll/collision"
	"github.com/milk9111/ragdoll/common"
	"github.com/milk9111/ragdoll/skeleton"
	"go.uber.org/zap"
)

// snapEpsilon is how close strength must get to its target to land on it.
const snapEpsilon = 1e-6

type State int

const (
	Driven State = iota
	Loosened
)

func (s State) String() string {
	switch s {
	case Driven:
		return "driven"
	case Loosened:
		return "loosened"
	default:
		return "unknown"
	}
}

// Transition records a joint switching between Driven and Loosened.
type Transition struct {
	Joint    int
	Name     string
	From     State
	To       State
	Strength float64
}

type jointState struct {
	strength float64
	state    State
	quiet    float64
	loss     float64
	hit      bool
}

// Controller owns the ragdoll strength of every joint in a binding. Contacts
// are queued by Observe and only take effect on the next Update.
type Controller struct {
	binding *skeleton.Binding
	exempt  collision.ExemptionSet
	cfg     Config
	logger  *zap.Logger
	script  *ImpactScript

	joints      []jointState
	pending     []collision.Contact
	transitions []Transition
	discarded   int
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithImpactScript(s *ImpactScript) Option {
	return func(c *Controller) {
		c.script = s
	}
}

func New(binding *skeleton.Binding, exempt collision.ExemptionSet, cfg Config, opts ...Option) (*Controller, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		binding: binding,
		exempt:  exempt,
		cfg:     cfg,
		logger:  zap.NewNop(),
		joints:  make([]jointState, binding.Len()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("strength")
	c.Reset()
	return c, nil
}

// SetImpactScript swaps the loss script. A nil script weighs every qualifying
// contact as a full loss.
func (c *Controller) SetImpactScript(s *ImpactScript) {
	c.script = s
}

// Reset returns every joint to full strength and drops queued contacts.
func (c *Controller) Reset() {
	for i := range c.joints {
		c.joints[i] = jointState{strength: 1, state: Driven}
	}
	c.pending = c.pending[:0]
	c.transitions = c.transitions[:0]
}

// Reconfigure swaps the tuning while keeping per-joint state.
func (c *Controller) Reconfigure(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *Controller) Config() Config {
	return c.cfg
}

// Observe queues a contact for the next Update. It never fails.
func (c *Controller) Observe(contact collision.Contact) {
	c.pending = append(c.pending, contact)
}

// Update advances the state machine by dt seconds. A non-positive dt changes
// nothing and leaves queued contacts for a later tick.
func (c *Controller) Update(dt float64) {
	if dt <= 0 || !common.IsFinite(dt) {
		return
	}
	c.consume()
	for i := range c.joints {
		c.step(i, dt)
	}
}

func (c *Controller) consume() {
	for _, contact := range c.pending {
		joint, ok := c.binding.Joint(contact.Joint)
		if !ok {
			c.discarded++
			c.logger.Warn("contact references unknown joint; discarding",
				zap.String("joint", contact.Joint),
				zap.Strings("categories", contact.Categories),
				zap.Uint64("tick", contact.Tick),
			)
			continue
		}
		if c.exempt.IsExempt(contact) {
			continue
		}
		loss := c.impactLoss(contact)
		if loss <= 0 {
			continue
		}
		if c.cfg.Scope == ScopeJoint {
			c.hit(joint, loss)
			continue
		}
		for i := range c.joints {
			c.hit(i, loss)
		}
	}
	c.pending = c.pending[:0]
}

func (c *Controller) impactLoss(contact collision.Contact) float64 {
	if c.script == nil {
		return 1
	}
	loss, err := c.script.Loss(contact)
	if err != nil {
		c.logger.Warn("impact script failed; using full loss",
			zap.String("script", c.script.Name()),
			zap.String("joint", contact.Joint),
			zap.Error(err),
		)
		return 1
	}
	return loss
}

func (c *Controller) hit(i int, loss float64) {
	js := &c.joints[i]
	js.hit = true
	js.quiet = 0
	if loss > js.loss {
		js.loss = loss
	}
	if js.state != Loosened {
		c.transition(i, Loosened)
	}
}

func (c *Controller) step(i int, dt float64) {
	js := &c.joints[i]
	defer func() { js.hit = false }()

	if js.state == Loosened {
		if !js.hit {
			js.quiet += dt
		}
		if js.hit || js.quiet < c.cfg.Cooldown {
			c.decay(js, dt)
			return
		}
	}

	// Driven, or loosened with the cooldown elapsed: recover.
	if js.strength < 1 {
		c.recover(js, dt)
	}
	if js.state == Loosened && js.strength >= c.cfg.RestoreThreshold {
		js.loss = 0
		c.transition(i, Driven)
	}
}

func (c *Controller) decay(js *jointState, dt float64) {
	target := common.Clamp01(1 - js.loss*(1-c.cfg.Floor))
	if js.strength <= target {
		return
	}
	if c.cfg.DecayRate <= 0 {
		js.strength = target
		return
	}
	s := target + (js.strength-target)*math.Exp(-c.cfg.DecayRate*dt)
	if s-target < snapEpsilon {
		s = target
	}
	js.strength = common.Clamp01(s)
}

func (c *Controller) recover(js *jointState, dt float64) {
	if c.cfg.RecoveryRate <= 0 {
		js.strength = 1
		return
	}
	s := js.strength + c.cfg.RecoveryRate*dt
	if 1-s < snapEpsilon {
		s = 1
	}
	js.strength = common.Clamp01(s)
}

func (c *Controller) transition(i int, to State) {
	js := &c.joints[i]
	from := js.state
	js.state = to
	t := Transition{Joint: i, Name: c.binding.Pair(i).Name, From: from, To: to, Strength: js.strength}
	c.transitions = append(c.transitions, t)
	c.logger.Debug("joint state changed",
		zap.String("joint", t.Name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Float64("strength", js.strength),
	)
}

// Strength returns the current strength of a joint, or 0 for an unknown index.
func (c *Controller) Strength(joint int) float64 {
	if joint < 0 || joint >= len(c.joints) {
		return 0
	}
	return c.joints[joint].strength
}

func (c *Controller) State(joint int) State {
	if joint < 0 || joint >= len(c.joints) {
		return Driven
	}
	return c.joints[joint].state
}

// Snapshot copies the strength of every joint, indexed by joint.
func (c *Controller) Snapshot() []float64 {
	out := make([]float64, len(c.joints))
	for i, js := range c.joints {
		out[i] = js.strength
	}
	return out
}

// Transitions drains the state changes recorded since the last call.
func (c *Controller) Transitions() []Transition {
	if len(c.transitions) == 0 {
		return nil
	}
	out := append([]Transition(nil), c.transitions...)
	c.transitions = c.transitions[:0]
	return out
}

// Pending is the number of queued contacts.
func (c *Controller) Pending() int {
	return len(c.pending)
}

// Discarded counts contacts dropped for referencing an unknown joint.
func (c *Controller) Discarded() int {
	return c.discarded
}
