package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	billingdomain "github.com/smallbiznis/tirta/internal/billing/domain"
	consumerdomain "github.com/smallbiznis/tirta/internal/consumer/domain"
	disconnectiondomain "github.com/smallbiznis/tirta/internal/disconnection/domain"
	notificationdomain "github.com/smallbiznis/tirta/internal/notification/domain"
	smsdomain "github.com/smallbiznis/tirta/internal/sms/domain"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// Models lists every table owned by the engine, in dependency order.
func Models() []any {
	return []any{
		&consumerdomain.Consumer{},
		&billingdomain.Bill{},
		&disconnectiondomain.Disconnection{},
		&notificationdomain.Notification{},
		&auditdomain.AuditTrail{},
		&smsdomain.SmsLog{},
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the models for dialects without SQL migrations.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	// MySQL has no partial indexes; there the open-event invariant rests on the consumer row lock.
	if db.Dialector.Name() == "sqlite" {
		err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_disconnections_open
ON disconnections (consumer_id) WHERE is_reconnected = false`).Error
		if err != nil {
			return fmt.Errorf("create open disconnection index: %w", err)
		}
	}
	return nil
}
