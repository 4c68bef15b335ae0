package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/clock"
	"github.com/pazarlabs/pazar/internal/config"
	"github.com/pazarlabs/pazar/internal/logger"
	"github.com/pazarlabs/pazar/internal/server"
	"github.com/pazarlabs/pazar/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// HTTP surface plus all settlement domains and the sweep scheduler
		server.Module,
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
