package tip

import (
	"go.uber.org/fx"

	"github.com/tipdrop/tipdrop/internal/tip/allocation"
	"github.com/tipdrop/tipdrop/internal/tip/repository"
	"github.com/tipdrop/tipdrop/internal/tip/service"
)

var Module = fx.Module("tip.service",
	fx.Provide(repository.Provide),
	fx.Provide(allocation.NewEngine),
	fx.Provide(service.New),
)
