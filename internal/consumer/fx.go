package consumer

import (
	"github.com/smallbiznis/tirta/internal/consumer/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("consumer.repository",
	fx.Provide(repository.Provide),
)
