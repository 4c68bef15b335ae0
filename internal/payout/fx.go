package payout

import (
	"github.com/pazarlabs/pazar/internal/payout/domain"
	"github.com/pazarlabs/pazar/internal/payout/repository"
	"github.com/pazarlabs/pazar/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout",
	fx.Provide(repository.Provide),
	fx.Provide(func() domain.ProviderPort { return service.NoopProvider{} }),
	fx.Provide(service.NewService),
)
