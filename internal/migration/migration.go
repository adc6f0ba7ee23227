package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/subscriber/internal/events"
	ledgerdomain "github.com/smallbiznis/subscriber/internal/ledger/domain"
	settingsdomain "github.com/smallbiznis/subscriber/internal/settings/domain"
	subscriptiondomain "github.com/smallbiznis/subscriber/internal/subscription/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema.
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

// Models lists every table the service owns.
func Models() []any {
	return []any{
		&ledgerdomain.Balance{},
		&ledgerdomain.Transfer{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.Sequence{},
		&settingsdomain.Settings{},
		&events.Record{},
	}
}

// AutoMigrate creates the schema from the gorm models. Used for sqlite and
// mysql, which the embedded SQL does not target.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}

// Migrate picks the schema strategy for the connected dialect.
func Migrate(conn *gorm.DB) error {
	if conn.Dialector.Name() != "postgres" {
		return AutoMigrate(conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
