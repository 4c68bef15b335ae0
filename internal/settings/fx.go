package settings

import (
	"github.com/pazarlabs/pazar/internal/settings/repository"
	"github.com/pazarlabs/pazar/internal/settings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settings.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
