package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, sched *Scheduler, log *zap.Logger) {
		runCtx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				log.Info("starting settlement scheduler")
				go sched.RunForever(runCtx)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.Info("stopping settlement scheduler")
				cancel()
				return nil
			},
		})
	}),
)
