package payout

import (
	"go.uber.org/fx"

	"github.com/tipdrop/tipdrop/internal/payout/service"
)

var Module = fx.Module("payout.service",
	fx.Provide(service.New),
)
