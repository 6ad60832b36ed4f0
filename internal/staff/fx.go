package staff

import (
	"go.uber.org/fx"

	"github.com/tipdrop/tipdrop/internal/staff/repository"
)

var Module = fx.Module("staff",
	fx.Provide(repository.Provide),
)
