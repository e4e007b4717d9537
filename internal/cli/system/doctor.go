package system

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/backup"
	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/keyring"
	"github.com/julianstephens/habitual/internal/storage/sqlite"
)

type DoctorCmd struct{}

type check struct {
	name     string
	needsDB  bool // skipped when the database is unreachable
	warnOnly bool // never fails the run
	run      func(ctx *cli.Context) error
}

var checks = []check{
	{name: "Schema version", needsDB: true, run: checkSchemaVersion},
	{name: "Migrations complete", needsDB: true, run: checkMigrationsComplete},
	{name: "Backups present", warnOnly: true, run: checkBackupsPresent},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "Streak records", needsDB: true, run: checkStreakRecords},
	{name: "Streak values", needsDB: true, run: checkStreakValues},
	{name: "Orphaned completions", needsDB: true, run: checkOrphanedCompletions},
	{name: "Completion timestamps", needsDB: true, run: checkCompletionTimestamps},
	{name: "OS keyring", warnOnly: true, run: checkKeyring},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := true

	if err := checkDBReachable(ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
		dbReachable = false
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
	}

	for _, c := range checks {
		if c.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warnOnly:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(ctx.Context()); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	db, err := database(ctx)
	if err != nil {
		return err
	}
	var result int
	if err := db.QueryRowContext(ctx.Context(), "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func database(ctx *cli.Context) (*sql.DB, error) {
	p, ok := ctx.Store.(interface{ GetDB() *sql.DB })
	if !ok {
		return nil, fmt.Errorf("storage provider %T does not expose a database connection", ctx.Store)
	}
	db := p.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return db, nil
}

func schemaVersions(ctx *cli.Context) (current, latest int, err error) {
	runner, err := migrationRunner(ctx)
	if err != nil {
		return 0, 0, err
	}
	current, err = runner.GetCurrentVersion()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	latest, err = runner.GetLatestVersion()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get latest schema version: %w", err)
	}
	return current, latest, nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	runner, err := migrationRunner(ctx)
	if err != nil {
		return err
	}
	return runner.ValidateVersion()
}

func checkMigrationsComplete(ctx *cli.Context) error {
	current, latest, err := schemaVersions(ctx)
	if err != nil {
		return err
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d (run '%s migrate')", current, latest, constants.AppName)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	if _, ok := ctx.Store.(*sqlite.Store); !ok {
		return nil
	}
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with '%s backup create'", constants.AppName)
	}
	return nil
}

func checkClockTimezone(_ *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}

func countRows(ctx *cli.Context, query string) (int, error) {
	db, err := database(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx.Context(), query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Every habit is created together with its streak row.
func checkStreakRecords(ctx *cli.Context) error {
	n, err := countRows(ctx, `
		SELECT COUNT(*)
		FROM habits h
		LEFT JOIN streaks s ON s.habit_id = h.id
		WHERE s.habit_id IS NULL`)
	if err != nil {
		return fmt.Errorf("failed to check streak records: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("found %d habits without a streak record", n)
	}
	return nil
}

func checkStreakValues(ctx *cli.Context) error {
	n, err := countRows(ctx, `
		SELECT COUNT(*)
		FROM streaks
		WHERE current_streak < 0 OR longest_streak < current_streak`)
	if err != nil {
		return fmt.Errorf("failed to check streak values: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("found %d streaks with a current streak above the longest (run '%s streak recalc --all')", n, constants.AppName)
	}
	return nil
}

func checkOrphanedCompletions(ctx *cli.Context) error {
	n, err := countRows(ctx, `
		SELECT COUNT(*)
		FROM habit_completions c
		LEFT JOIN habits h ON c.habit_id = h.id
		WHERE h.id IS NULL OR h.user_id <> c.user_id`)
	if err != nil {
		return fmt.Errorf("failed to check orphaned completions: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("found %d completions referencing a missing or foreign habit", n)
	}
	return nil
}

// PostgreSQL stores completion times as timestamptz, so only SQLite text
// columns can hold malformed values.
func checkCompletionTimestamps(ctx *cli.Context) error {
	if _, ok := ctx.Store.(*sqlite.Store); !ok {
		return nil
	}
	n, err := countRows(ctx, `
		SELECT COUNT(*)
		FROM habit_completions
		WHERE completed_at NOT GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]T*'`)
	if err != nil {
		return fmt.Errorf("failed to check completion timestamps: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("found %d completions with malformed timestamps; they are skipped when computing streaks", n)
	}
	return nil
}

func checkKeyring(_ *cli.Context) error {
	if !keyring.IsAvailable() {
		return fmt.Errorf("OS keyring is not available; use HABITUAL_DB_CONNECTION and HABITUAL_JWT_SECRET instead")
	}
	return nil
}
