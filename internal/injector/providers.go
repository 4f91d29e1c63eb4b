// Package injector wires the server object graph from configuration.
package injector

import (
	"github.com/simforge/simforge/internal/core/config"
	"github.com/simforge/simforge/internal/core/engine"
	"github.com/simforge/simforge/internal/core/gameplay"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/persist"
	"github.com/simforge/simforge/internal/server"
)

func ProvideLogger(cfg *config.Config) log.Log {
	return log.New(log.ParseLevel(cfg.LogLevel))
}

func ProvideEngine(cfg *config.Config, logger log.Log) *engine.Engine {
	return engine.New(engine.Config{
		TickRate:          cfg.Engine.TickRate,
		MaxEntities:       cfg.Engine.MaxEntities,
		MinActionInterval: cfg.Engine.MinActionInterval,
		ActionQueueSize:   cfg.Engine.ActionQueueSize,
		GameMode:          cfg.Engine.GameMode,
		Logger:            logger,
	})
}

func ProvideTunables(cfg *config.Config) gameplay.Tunables {
	return gameplay.Tunables{
		MaxStepDistance: cfg.Gameplay.MaxStepDistance,
		WorldBound:      cfg.Gameplay.WorldBound,
		RegenPerSecond:  cfg.Gameplay.RegenPerSecond,
		PickupRange:     cfg.Gameplay.PickupRange,
		MoveCooldown:    cfg.Gameplay.MoveCooldown,
		AttackCooldown:  cfg.Gameplay.AttackCooldown,
	}
}

func ProvideGateway(cfg *config.Config, e *engine.Engine, logger log.Log) *server.Server {
	return server.NewServer(e, server.Config{
		Addr:     cfg.Gateway.Addr,
		QUICAddr: cfg.Gateway.QUICAddr,
		Logger:   logger,
	})
}

func ProvideSaver(cfg *config.Config, e *engine.Engine, logger log.Log) *persist.Saver {
	if !cfg.Persist.Enabled {
		return nil
	}
	return persist.NewSaver(e, cfg.Persist.Path, cfg.Persist.Interval, logger)
}
