package observability

import (
	"github.com/pazarlabs/pazar/internal/config"
	"github.com/pazarlabs/pazar/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(func(cfg config.Config) *metrics.SettlementMetrics {
		return metrics.SettlementWithConfig(metrics.Config{
			ServiceName: cfg.AppName,
			Environment: cfg.Environment,
		})
	}),
)
