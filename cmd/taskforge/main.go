package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskforge/internal/clock"
	"github.com/smallbiznis/taskforge/internal/config"
	"github.com/smallbiznis/taskforge/internal/logger"
	"github.com/smallbiznis/taskforge/internal/migration"
	"github.com/smallbiznis/taskforge/internal/server"
	"github.com/smallbiznis/taskforge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface plus every domain module it serves
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
