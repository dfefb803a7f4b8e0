package component

// SpawnRequest is a prop prefab due at a scenario time.
type SpawnRequest struct {
	Prefab    string
	At        float64
	X, Y      float64
	VelocityX float64
	VelocityY float64
}

// Spawner releases its requests in time order. Next indexes the first request
// not yet spawned.
type Spawner struct {
	Requests []SpawnRequest
	Next     int
}

var SpawnerComponent = NewComponent[Spawner]()
