package webhook

import (
	"go.uber.org/fx"

	"github.com/tipdrop/tipdrop/internal/webhook/repository"
	"github.com/tipdrop/tipdrop/internal/webhook/service"
)

var Module = fx.Module("webhook.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
