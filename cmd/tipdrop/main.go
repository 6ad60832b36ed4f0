package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/tipdrop/tipdrop/internal/config"
	"github.com/tipdrop/tipdrop/internal/migration"
	"github.com/tipdrop/tipdrop/internal/observability"
	"github.com/tipdrop/tipdrop/internal/payout"
	"github.com/tipdrop/tipdrop/internal/qrcode"
	"github.com/tipdrop/tipdrop/internal/ratelimit"
	"github.com/tipdrop/tipdrop/internal/reconciler"
	"github.com/tipdrop/tipdrop/internal/server"
	"github.com/tipdrop/tipdrop/internal/staff"
	"github.com/tipdrop/tipdrop/internal/tip"
	"github.com/tipdrop/tipdrop/internal/vault"
	"github.com/tipdrop/tipdrop/internal/venue"
	"github.com/tipdrop/tipdrop/internal/webhook"
	"github.com/tipdrop/tipdrop/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		vault.Module,
		venue.Module,
		staff.Module,
		qrcode.Module,
		tip.Module,
		webhook.Module,
		payout.Module,
		ratelimit.Module,
		reconciler.Module,

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
