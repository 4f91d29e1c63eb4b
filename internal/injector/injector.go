//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/simforge/simforge/internal/core/config"
	"github.com/simforge/simforge/internal/server"
)

func InitializeGateway(cfg *config.Config) *server.Server {
	wire.Build(ProvideLogger, ProvideEngine, ProvideGateway)
	return nil
}
