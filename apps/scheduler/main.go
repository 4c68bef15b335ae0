package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/audit"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/commission"
	"github.com/pazarlabs/pazar/internal/config"
	"github.com/pazarlabs/pazar/internal/dispute"
	"github.com/pazarlabs/pazar/internal/idempotency"
	"github.com/pazarlabs/pazar/internal/locker"
	"github.com/pazarlabs/pazar/internal/logger"
	"github.com/pazarlabs/pazar/internal/migration"
	"github.com/pazarlabs/pazar/internal/observability"
	"github.com/pazarlabs/pazar/internal/payout"
	"github.com/pazarlabs/pazar/internal/payoutops"
	"github.com/pazarlabs/pazar/internal/scheduler"
	"github.com/pazarlabs/pazar/internal/settings"
	"github.com/pazarlabs/pazar/internal/trust"
	"github.com/pazarlabs/pazar/pkg/db"
	"go.uber.org/fx"
)

// Standalone sweep runner for deployments that split the HTTP surface from
// the background jobs. The redis locker keeps concurrent replicas from
// double-running the sweeps.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		locker.Module,
		observability.Module,

		// Domain services required by the sweeps
		audit.Module,
		idempotency.Module,
		commission.Module,
		trust.Module,
		dispute.Module,
		payout.Module,
		payoutops.Module,
		settings.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
