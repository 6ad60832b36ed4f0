package qrcode

import (
	"go.uber.org/fx"

	"github.com/tipdrop/tipdrop/internal/qrcode/repository"
)

var Module = fx.Module("qrcode",
	fx.Provide(repository.Provide),
)
