package migration

import (
	"strings"

	"github.com/smallbiznis/tirta/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
		if !strings.EqualFold(strings.TrimSpace(cfg.Type), db.TypePostgres) {
			log.Info("applying schema with automigrate", zap.String("dialect", cfg.Type))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
