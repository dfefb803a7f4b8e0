package component

import "github.com/jakecoffman/cp"

// PhysicsBody stores Chipmunk2D runtime data and collider configuration.
// Body and Shape are filled in by the physics system.
type PhysicsBody struct {
	Body       *cp.Body
	Shape      *cp.Shape
	Width      float64
	Height     float64
	Radius     float64
	Mass       float64
	Friction   float64
	Elasticity float64
	Static     bool
	// VelocityX and VelocityY are applied once when the body is created.
	VelocityX float64
	VelocityY float64
}

var PhysicsBodyComponent = NewComponent[PhysicsBody]()

// Segment is static line geometry such as ground.
type Segment struct {
	AX, AY    float64
	BX, BY    float64
	Thickness float64
	Friction  float64
	Shape     *cp.Shape
}

var SegmentComponent = NewComponent[Segment]()
