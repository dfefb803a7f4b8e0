package prefabs

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// RigSpec describes a ragdoll rig. The slave tree usually aliases the master
// tree with a YAML anchor.
type RigSpec struct {
	Name                      string        `yaml:"name"`
	Category                  string        `yaml:"category"`
	Position                  Vec2Spec      `yaml:"position"`
	DontLoseStrengthLayerMask []string      `yaml:"dont_lose_strength_layers"`
	Master                    *BoneSpec     `yaml:"master"`
	Slave                     *BoneSpec     `yaml:"slave"`
	Strength                  *StrengthSpec `yaml:"strength"`
	Follow                    *FollowSpec   `yaml:"follow"`
	Clip                      string        `yaml:"clip"`
	ImpactScript              string        `yaml:"impact_script"`
	Color                     *YAMLColor    `yaml:"color"`
}

func LoadRigSpec(filename string) (*RigSpec, error) {
	spec, err := LoadSpec[RigSpec](filename)
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

type BoneSpec struct {
	Name     string     `yaml:"name"`
	Offset   Vec2Spec   `yaml:"offset"`
	Rotation float64    `yaml:"rotation"`
	Length   float64    `yaml:"length"`
	Width    float64    `yaml:"width"`
	Mass     float64    `yaml:"mass"`
	Limit    *LimitSpec `yaml:"limit"`
	Children []BoneSpec `yaml:"children"`
}

type LimitSpec struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// StrengthSpec fields left out of the YAML keep their defaults.
type StrengthSpec struct {
	Scope            string   `yaml:"scope"`
	Floor            *float64 `yaml:"floor"`
	DecayRate        *float64 `yaml:"decay_rate"`
	Cooldown         *float64 `yaml:"cooldown"`
	RecoveryRate     *float64 `yaml:"recovery_rate"`
	RestoreThreshold *float64 `yaml:"restore_threshold"`
}

type FollowSpec struct {
	Stiffness        *float64 `yaml:"stiffness"`
	Damping          *float64 `yaml:"damping"`
	AngularStiffness *float64 `yaml:"angular_stiffness"`
	AngularDamping   *float64 `yaml:"angular_damping"`
	MaxForce         *float64 `yaml:"max_force"`
	MaxTorque        *float64 `yaml:"max_torque"`
}

type ClipSpec struct {
	Name     string               `yaml:"name"`
	Duration float64              `yaml:"duration"`
	Loop     bool                 `yaml:"loop"`
	Tracks   map[string][]KeySpec `yaml:"tracks"`
}

func LoadClipSpec(filename string) (*ClipSpec, error) {
	spec, err := LoadSpec[ClipSpec](filename)
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

type KeySpec struct {
	Time     float64   `yaml:"time"`
	Position *Vec2Spec `yaml:"position"`
	Rotation float64   `yaml:"rotation"`
}

// ScenarioSpec lays out a simulation: ground, rigs and timed prop spawns.
type ScenarioSpec struct {
	Name     string         `yaml:"name"`
	Gravity  float64        `yaml:"gravity"`
	Timestep float64        `yaml:"timestep"`
	Duration float64        `yaml:"duration"`
	Ground   []GroundSpec   `yaml:"ground"`
	Rigs     []RigPlacement `yaml:"rigs"`
	Spawns   []SpawnSpec    `yaml:"spawns"`
}

func LoadScenarioSpec(filename string) (*ScenarioSpec, error) {
	spec, err := LoadSpec[ScenarioSpec](filename)
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

type GroundSpec struct {
	From      Vec2Spec `yaml:"from"`
	To        Vec2Spec `yaml:"to"`
	Thickness float64  `yaml:"thickness"`
	Friction  float64  `yaml:"friction"`
	Layer     string   `yaml:"layer"`
}

type RigPlacement struct {
	Prefab   string    `yaml:"prefab"`
	Position *Vec2Spec `yaml:"position"`
}

// SpawnSpec places a prop prefab at a scenario time.
type SpawnSpec struct {
	Prefab   string   `yaml:"prefab"`
	At       float64  `yaml:"at"`
	Position Vec2Spec `yaml:"position"`
	Velocity Vec2Spec `yaml:"velocity"`
}

type Vec2Spec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type YAMLColor struct {
	color.Color
}

func (c *YAMLColor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("color must be a string")
	}

	s := strings.TrimPrefix(value.Value, "#")

	if len(s) != 6 && len(s) != 8 {
		return fmt.Errorf("invalid color format: %s", value.Value)
	}

	parse := func(start int) (uint8, error) {
		v, err := strconv.ParseUint(s[start:start+2], 16, 8)
		return uint8(v), err
	}

	r, err := parse(0)
	if err != nil {
		return err
	}
	g, err := parse(2)
	if err != nil {
		return err
	}
	b, err := parse(4)
	if err != nil {
		return err
	}

	a := uint8(255)
	if len(s) == 8 {
		a, err = parse(6)
		if err != nil {
			return err
		}
	}

	c.Color = color.NRGBA{R: r, G: g, B: b, A: a}
	return nil
}
