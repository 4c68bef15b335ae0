package commission

import (
	"github.com/pazarlabs/pazar/internal/commission/repository"
	"github.com/pazarlabs/pazar/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
