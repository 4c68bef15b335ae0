package trust

import (
	"github.com/pazarlabs/pazar/internal/trust/domain"
	"github.com/pazarlabs/pazar/internal/trust/repository"
	"github.com/pazarlabs/pazar/internal/trust/service"
	"go.uber.org/fx"
)

var Module = fx.Module("trust.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() domain.ChargebackRateStrategy { return service.EarningsApproximation{} }),
	fx.Provide(func() domain.ReceivableRateStrategy { return service.PayoutReceivableRate{} }),
	fx.Provide(service.NewService),
)
