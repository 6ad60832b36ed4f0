package venue

import (
	"go.uber.org/fx"

	"github.com/tipdrop/tipdrop/internal/venue/repository"
	"github.com/tipdrop/tipdrop/internal/venue/service"
)

var Module = fx.Module("venue.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
