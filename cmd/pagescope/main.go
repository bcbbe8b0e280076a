package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pagescope/pagescope/internal/clock"
	"github.com/pagescope/pagescope/internal/observability"
	"github.com/pagescope/pagescope/internal/server"
	"github.com/pagescope/pagescope/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
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
