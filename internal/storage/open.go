package storage

import (
	"fmt"
	"strings"

	"github.com/julianstephens/habitual/internal/storage/postgres"
	"github.com/julianstephens/habitual/internal/storage/sqlite"
)

var (
	_ Provider = (*sqlite.Store)(nil)
	_ Provider = (*postgres.Store)(nil)
)

// IsPostgres reports whether dsn is a PostgreSQL URL or key=value
// connection string rather than a SQLite path.
func IsPostgres(dsn string) bool {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return true
	}
	for _, field := range strings.Fields(dsn) {
		if key, _, ok := strings.Cut(field, "="); ok && (key == "host" || key == "dbname") {
			return true
		}
	}
	return false
}

// Open returns the provider for dsn without connecting. PostgreSQL URLs must
// not embed a password.
func Open(dsn string) (Provider, error) {
	if IsPostgres(dsn) {
		if _, err := postgres.ValidateConnString(dsn); err != nil {
			return nil, err
		}
		return postgres.New(dsn), nil
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	return sqlite.NewStore(dsn), nil
}

// OpenTrusted is Open for connection strings read from the environment or
// the OS keyring, which may carry a password.
func OpenTrusted(dsn string) (Provider, error) {
	if IsPostgres(dsn) {
		return postgres.New(dsn), nil
	}
	return Open(dsn)
}
