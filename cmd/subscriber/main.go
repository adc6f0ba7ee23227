package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/config"
	"github.com/smallbiznis/subscriber/internal/events"
	"github.com/smallbiznis/subscriber/internal/ledger"
	"github.com/smallbiznis/subscriber/internal/lock"
	"github.com/smallbiznis/subscriber/internal/migration"
	"github.com/smallbiznis/subscriber/internal/observability"
	"github.com/smallbiznis/subscriber/internal/oracle"
	"github.com/smallbiznis/subscriber/internal/payment"
	"github.com/smallbiznis/subscriber/internal/ratelimit"
	"github.com/smallbiznis/subscriber/internal/server"
	"github.com/smallbiznis/subscriber/internal/settings"
	"github.com/smallbiznis/subscriber/internal/subscription"
	"github.com/smallbiznis/subscriber/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		ratelimit.Module,
		events.Module,

		// Functional Domains
		ledger.Module,
		oracle.Module,
		subscription.Module,
		settings.Module,
		payment.Module,

		migration.Module,
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
