package disconnection

import (
	"github.com/smallbiznis/tirta/internal/disconnection/repository"
	"github.com/smallbiznis/tirta/internal/disconnection/service"
	"go.uber.org/fx"
)

var Module = fx.Module("disconnection.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
