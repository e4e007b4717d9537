package constants

import "time"

const (
	AppName              = "habitual"
	DefaultKeyringUser   = "database-connection"
	JWTSecretKeyringUser = "jwt-secret"
	DefaultConfigPath    = "~/.config/habitual/habitual.db"
	Version              = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "habitual-"
	BackupFileSuffix = ".db"

	// Notify constants
	NotifyMaxRetries       = 3
	NotifyRetryDelay       = 100 * time.Millisecond
	NotifierLockfileName   = "habitual-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.habitual"
	TrayExecutablePrefix   = "habitual-tray"

	// Streak persistence
	StreakSaveMaxRetries = 3
	StreakSaveRetryDelay = 25 * time.Millisecond

	// Event bus
	EventBufferSize = 256

	// Auth
	TokenLifetime = 24 * time.Hour
	BcryptCost    = 12

	// Rate limits (token bucket): auth endpoints get a small budget that refills
	// every 15 minutes, the rest of the API refills per minute.
	AuthRateBurst    = 5
	AuthRateInterval = 15 * time.Minute
	APIRateBurst     = 100
	APIRateInterval  = time.Minute

	// Server defaults
	DefaultListenAddr     = "127.0.0.1:8080"
	DefaultRecalcSchedule = "@daily"
	ShutdownTimeout       = 10 * time.Second
)
