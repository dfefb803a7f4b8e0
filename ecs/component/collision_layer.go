package component

// CollisionLayer names an entity's collision category and the categories it
// collides with. Labels are resolved to mask bits by the physics system's
// registry. An empty Mask collides with everything.
type CollisionLayer struct {
	Category string
	Mask     []string
}

var CollisionLayerComponent = NewComponent[CollisionLayer]()
