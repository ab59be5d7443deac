package notification

import (
	"github.com/smallbiznis/tirta/internal/notification/repository"
	"github.com/smallbiznis/tirta/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
