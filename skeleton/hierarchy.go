package skeleton

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

var ErrConfigurationMismatch = errors.New("skeleton: configuration mismatch")

// AngleLimit bounds a bone's rotation relative to its parent, in radians.
type AngleLimit struct {
	Min float64
	Max float64
}

// BoneDef is the nested definition a Hierarchy is built from. Offset and
// Rotation are relative to the parent's joint frame.
type BoneDef struct {
	Name     string
	Offset   mgl64.Vec2
	Rotation float64
	Length   float64
	Width    float64
	Mass     float64
	Limit    *AngleLimit
	Children []BoneDef
}

type Bone struct {
	Name   string
	Parent int // -1 for the root
	Local  Transform
	Length float64
	Width  float64
	Mass   float64
	Limit  *AngleLimit
}

// Hierarchy is an arena of bones in construction order. A parent always has a
// lower index than its children.
type Hierarchy struct {
	bones []Bone
	index map[string]int
}

func NewHierarchy(root BoneDef) (*Hierarchy, error) {
	h := &Hierarchy{index: make(map[string]int)}
	if err := h.add(root, -1); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hierarchy) add(def BoneDef, parent int) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("%w: bone with empty name under parent %d", ErrConfigurationMismatch, parent)
	}
	if _, dup := h.index[name]; dup {
		return fmt.Errorf("%w: duplicate bone %q", ErrConfigurationMismatch, name)
	}

	local := Identity()
	local.Position = def.Offset
	local.Rotation = def.Rotation

	idx := len(h.bones)
	h.bones = append(h.bones, Bone{
		Name:   name,
		Parent: parent,
		Local:  local,
		Length: def.Length,
		Width:  def.Width,
		Mass:   def.Mass,
		Limit:  def.Limit,
	})
	h.index[name] = idx

	for _, child := range def.Children {
		if err := h.add(child, idx); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hierarchy) Len() int {
	if h == nil {
		return 0
	}
	return len(h.bones)
}

func (h *Hierarchy) Bone(i int) Bone {
	return h.bones[i]
}

func (h *Hierarchy) Root() Bone {
	return h.bones[0]
}

func (h *Hierarchy) Index(name string) (int, bool) {
	if h == nil {
		return 0, false
	}
	i, ok := h.index[name]
	return i, ok
}

// Names returns bone names in construction order.
func (h *Hierarchy) Names() []string {
	names := make([]string, 0, h.Len())
	for _, b := range h.bones {
		names = append(names, b.Name)
	}
	return names
}

// ParentName returns the name of a bone's parent, or "" for the root.
func (h *Hierarchy) ParentName(i int) string {
	p := h.bones[i].Parent
	if p < 0 {
		return ""
	}
	return h.bones[p].Name
}

// BindLocals returns a fresh copy of the bind pose local transforms.
func (h *Hierarchy) BindLocals() []Transform {
	out := make([]Transform, len(h.bones))
	for i, b := range h.bones {
		out[i] = b.Local
	}
	return out
}
