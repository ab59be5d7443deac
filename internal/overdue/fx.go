package overdue

import (
	"github.com/smallbiznis/tirta/internal/overdue/service"
	"go.uber.org/fx"
)

var Module = fx.Module("overdue.service",
	fx.Provide(service.NewService),
)
