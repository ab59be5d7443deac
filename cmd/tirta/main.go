package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/audit"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/billing"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/consumer"
	"github.com/smallbiznis/tirta/internal/disconnection"
	"github.com/smallbiznis/tirta/internal/migration"
	"github.com/smallbiznis/tirta/internal/notification"
	"github.com/smallbiznis/tirta/internal/observability"
	"github.com/smallbiznis/tirta/internal/overdue"
	"github.com/smallbiznis/tirta/internal/ratelimit"
	"github.com/smallbiznis/tirta/internal/scheduler"
	"github.com/smallbiznis/tirta/internal/server"
	"github.com/smallbiznis/tirta/internal/sms"
	"github.com/smallbiznis/tirta/pkg/db"
	"github.com/smallbiznis/tirta/pkg/kv"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		kv.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,
		authorization.Module,

		// Functional Domains
		consumer.Module,
		billing.Module,
		audit.Module,
		notification.Module,
		overdue.Module,
		disconnection.Module,
		sms.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = parsed
	}
	return snowflake.NewNode(nodeID)
}
