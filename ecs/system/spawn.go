package system

import (
	"github.com/milk9111/ragdoll/ecs"
	"github.com/milk9111/ragdoll/ecs/component"
	"github.com/milk9111/ragdoll/ecs/entity"
	"go.uber.org/zap"
)

// EventPropSpawned is the Event.Type published with the new prop entity.
const EventPropSpawned = "prop_spawned"

// SpawnSystem releases Spawner requests once the world clock reaches them.
type SpawnSystem struct {
	logger *zap.Logger
}

func NewSpawnSystem(logger *zap.Logger) *SpawnSystem {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpawnSystem{logger: logger.Named("spawn")}
}

func (s *SpawnSystem) Update(w *ecs.World) {
	if s == nil || w == nil {
		return
	}

	for _, e := range w.Query(component.SpawnerComponent.Kind()) {
		spawner, ok := ecs.Get(w, e, component.SpawnerComponent)
		if !ok {
			continue
		}
		for spawner.Next < len(spawner.Requests) {
			req := spawner.Requests[spawner.Next]
			if req.At > w.Time() {
				break
			}
			spawner.Next++

			prop, err := entity.BuildProp(w, req.Prefab, req.X, req.Y, req.VelocityX, req.VelocityY)
			if err != nil {
				s.logger.Error("spawn failed", zap.String("prefab", req.Prefab), zap.Error(err))
				continue
			}
			s.logger.Debug("prop spawned",
				zap.String("prefab", req.Prefab),
				zap.Stringer("entity", prop),
				zap.Float64("time", w.Time()),
			)
			w.Events().Push(ecs.Event{Type: EventPropSpawned, Data: prop})
		}
		_ = ecs.Add(w, e, component.SpawnerComponent, spawner)
	}
}
