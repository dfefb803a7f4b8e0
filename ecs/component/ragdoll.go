package component

import (
	"image/color"

	"github.com/milk9111/ragdoll/rig"
)

// Ragdoll attaches a live rig to an entity. The ragdoll system ticks it and
// closes it when the entity dies.
type Ragdoll struct {
	Rig    *rig.Rig
	Prefab string
	Color  color.Color
}

var RagdollComponent = NewComponent[Ragdoll]()
