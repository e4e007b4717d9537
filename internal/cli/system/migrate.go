package system

import (
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/migration"
	"github.com/julianstephens/habitual/internal/storage/postgres"
	"github.com/julianstephens/habitual/internal/storage/sqlite"
	"github.com/julianstephens/habitual/migrations"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	if err := ctx.Store.Load(ctx.Context()); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}

	runner, err := migrationRunner(ctx)
	if err != nil {
		return err
	}

	count, err := runner.ApplyMigrations(ctx.Context(), func(msg string) {
		fmt.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		fmt.Println("No migrations to apply. Database is up to date.")
	} else {
		fmt.Printf("\n✓ Successfully applied %d migration(s).\n", count)
	}
	return nil
}

// migrationRunner returns a runner over the loaded store's connection.
func migrationRunner(ctx *cli.Context) (*migration.Runner, error) {
	var (
		db     *sql.DB
		set    fs.FS
		driver migration.Driver
	)
	switch s := ctx.Store.(type) {
	case *sqlite.Store:
		db, set, driver = s.GetDB(), migrations.SQLite(), migration.DriverSQLite
	case *postgres.Store:
		db, set, driver = s.GetDB(), migrations.Postgres(), migration.DriverPostgres
	default:
		return nil, fmt.Errorf("unsupported storage provider %T", ctx.Store)
	}
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return migration.NewRunner(db, set, driver)
}
