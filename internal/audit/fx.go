package audit

import (
	"github.com/pazarlabs/pazar/internal/audit/repository"
	"github.com/pazarlabs/pazar/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
