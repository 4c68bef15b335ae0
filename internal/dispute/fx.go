package dispute

import (
	"github.com/pazarlabs/pazar/internal/dispute/repository"
	"github.com/pazarlabs/pazar/internal/dispute/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dispute.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
