package vault

import (
	"go.uber.org/fx"

	"github.com/tipdrop/tipdrop/internal/config"
)

var Module = fx.Module("vault",
	fx.Provide(func(cfg config.Config) (*Vault, error) {
		return New(cfg.CredentialsSecret)
	}),
)
