package sms

import (
	"github.com/smallbiznis/tirta/internal/sms/queue"
	"github.com/smallbiznis/tirta/internal/sms/repository"
	"github.com/smallbiznis/tirta/internal/sms/service"
	"github.com/smallbiznis/tirta/internal/sms/transport"
	"github.com/smallbiznis/tirta/internal/sms/worker"
	"go.uber.org/fx"
)

var Module = fx.Module("sms.service",
	fx.Provide(repository.Provide),
	fx.Provide(queue.New),
	fx.Provide(transport.New),
	fx.Provide(transport.NewBreaker),
	fx.Provide(service.NewService),
	fx.Provide(worker.New),
	fx.Invoke(worker.Register),
)
