package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/cli/backups"
	"github.com/julianstephens/habitual/internal/cli/habits"
	"github.com/julianstephens/habitual/internal/cli/notifications"
	"github.com/julianstephens/habitual/internal/cli/streaks"
	"github.com/julianstephens/habitual/internal/cli/system"
	"github.com/julianstephens/habitual/internal/cli/users"
	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/events"
	"github.com/julianstephens/habitual/internal/keyring"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/notifier"
	"github.com/julianstephens/habitual/internal/service"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/storage/sqlite"
)

var CLI struct {
	Version   kong.VersionFlag
	DB        string `name:"db" help:"SQLite database path or PostgreSQL connection string. PostgreSQL passwords must come from HABITUAL_DB_CONNECTION, the OS keyring or .pgpass." env:"HABITUAL_DB"`
	Username  string `name:"user" short:"u" help:"Account that local commands act on." env:"HABITUAL_USER"`
	JWTSecret string `name:"jwt-secret" help:"Secret used to sign API tokens, at least 32 bytes. Defaults to the keyring secret." env:"HABITUAL_JWT_SECRET"`
	Debug     bool   `help:"Write debug logs to stderr."`
	LogLevel  string `name:"log-level" help:"Minimum level written to the log file (debug, info, warn, error)." env:"HABITUAL_LOG_LEVEL"`
	LogJSON   bool   `name:"log-json" help:"Write logs as JSON lines." env:"HABITUAL_LOG_JSON"`

	Init    system.InitCmd    `cmd:"" help:"Initialize habitual storage."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Serve   system.ServeCmd   `cmd:"" help:"Run the HTTP API with milestone delivery and scheduled recalculation."`
	Keyring struct {
		SetConnection system.KeyringSetCmd          `cmd:"" aliases:"set" help:"Store the database connection string."`
		Get           system.KeyringGetCmd          `cmd:"" help:"Show the stored connection string with the password masked."`
		Delete        system.KeyringDeleteCmd       `cmd:"" help:"Remove the stored connection string."`
		Status        system.KeyringStatusCmd       `cmd:"" help:"Show keyring availability and stored secrets." default:"1"`
		SetSecret     system.KeyringSetSecretCmd    `cmd:"" help:"Store the API token signing secret."`
		DeleteSecret  system.KeyringDeleteSecretCmd `cmd:"" help:"Remove the API token signing secret."`
	} `cmd:"" help:"Manage secrets in the OS keyring."`
	Backup struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
	User          users.UserCmd                 `cmd:"" help:"Manage user accounts."`
	Habit         habits.HabitCmd               `cmd:"" help:"Manage habits and record completions."`
	Streak        streaks.StreakCmd             `cmd:"" help:"Inspect and recalculate streaks."`
	Notifications notifications.NotificationCmd `cmd:"" aliases:"notif" help:"Read in-app notifications."`
	Notify        system.NotifyCmd              `cmd:"" hidden:"" help:"Send a test desktop notification."`
}

// Commands that manage storage themselves or never touch it.
var skipLoad = map[string]bool{
	"init":    true,
	"doctor":  true,
	"keyring": true,
	"notify":  true,
}

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracker with streaks, milestones and a small HTTP API"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":         constants.Version,
			"listen_addr":     constants.DefaultListenAddr,
			"recalc_schedule": constants.DefaultRecalcSchedule,
		},
	)

	store, err := openStore(CLI.DB)
	if err != nil {
		apperrors.Fatalf("failed to open database: %v", err)
	}

	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: configDir(store),
		Console:   strings.HasPrefix(kctx.Command(), "serve"),
		Level:     CLI.LogLevel,
		JSON:      CLI.LogJSON,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(constants.EventBufferSize)
	services := service.New(store, bus, nil)
	bus.Register(
		events.LogSink{},
		&events.NotificationSink{Store: services.Notifications},
		&events.DesktopSink{Desktop: notifier.New()},
	)

	appCtx := &cli.Context{
		Ctx:       ctx,
		Store:     store,
		Services:  services,
		Bus:       bus,
		Username:  CLI.Username,
		JWTSecret: CLI.JWTSecret,
	}

	command := strings.Fields(kctx.Command())
	if len(command) > 0 && !skipLoad[command[0]] {
		if err := store.Load(ctx); err != nil {
			apperrors.Fatal(err)
		}
	}

	err = kctx.Run(appCtx)
	if cerr := store.Close(); cerr != nil {
		logger.Warn("Failed to close storage", "error", cerr)
	}
	apperrors.Fatal(err)
	logger.Close()
}

// openStore picks the database: --db or HABITUAL_DB first, then
// HABITUAL_DB_CONNECTION, then the keyring, then the default SQLite path.
// Only the flag is checked for embedded passwords.
func openStore(flag string) (storage.Provider, error) {
	if flag != "" {
		if storage.IsPostgres(flag) {
			return storage.Open(flag)
		}
		return storage.Open(expandHome(flag))
	}

	if dsn := os.Getenv("HABITUAL_DB_CONNECTION"); dsn != "" {
		return storage.OpenTrusted(dsn)
	}

	dsn, err := keyring.GetConnectionString()
	if err == nil {
		return storage.OpenTrusted(dsn)
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		logger.Debug("Keyring lookup failed, using default database", "error", err)
	}
	return storage.Open(expandHome(constants.DefaultConfigPath))
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// configDir is where logs go: next to a SQLite database, or the default
// config directory for PostgreSQL.
func configDir(store storage.Provider) string {
	if s, ok := store.(*sqlite.Store); ok {
		return filepath.Dir(s.GetConfigPath())
	}
	return filepath.Dir(expandHome(constants.DefaultConfigPath))
}
