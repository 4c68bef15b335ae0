package payoutops

import (
	"github.com/pazarlabs/pazar/internal/payoutops/domain"
	"github.com/pazarlabs/pazar/internal/payoutops/repository"
	"github.com/pazarlabs/pazar/internal/payoutops/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payoutops.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(log *zap.Logger) domain.LedgerFinalizer {
		return service.NoopLedgerFinalizer{Log: log.Named("ledger")}
	}),
	fx.Provide(service.NewCommands),
	fx.Provide(service.NewHealth),
)
