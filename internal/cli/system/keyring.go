package system

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/julianstephens/habitual/internal/auth"
	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/keyring"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/storage/postgres"
)

// KeyringSetCmd stores the PostgreSQL connection string used when --db is
// not given.
type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL URL or key=value connection string."`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	if !storage.IsPostgres(cmd.ConnectionString) {
		return errors.New("connection string must be a PostgreSQL URL or key=value connection string")
	}

	_, err := postgres.ValidateConnString(cmd.ConnectionString)
	switch {
	case errors.Is(err, postgres.ErrEmbeddedCredentials):
		// The keyring is encrypted, so a password is acceptable here.
		fmt.Println(cli.WarningStyle.Render("⚠️  Connection string contains a password."))
		fmt.Println("   It is stored as-is in the encrypted OS keyring. Use .pgpass to keep it out of the string instead.")
	case err != nil:
		return fmt.Errorf("invalid connection string: %w", err)
	}

	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return err
	}
	fmt.Println("✓ Connection string stored in OS keyring")
	fmt.Printf("  %s now uses it whenever --db is not given\n", constants.AppName)
	return nil
}

type KeyringGetCmd struct{}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.GetConnectionString()
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("no connection string found in keyring. Use '%s keyring set-connection' to store one", constants.AppName)
	}
	if err != nil {
		return err
	}
	fmt.Println(maskPassword(connStr))
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	err := keyring.DeleteConnectionString()
	if errors.Is(err, keyring.ErrNotFound) {
		return errors.New("no connection string found in keyring")
	}
	if err != nil {
		return err
	}
	fmt.Println("✓ Connection string deleted from OS keyring")
	return nil
}

// KeyringStatusCmd reports keyring availability and which secrets are
// stored, without printing them.
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		fmt.Println("❌ OS keyring is not available on this system")
		return keyring.ErrKeyringUnavailable
	}
	fmt.Println("✓ OS keyring is available")

	rows := make([][]string, 0, len(keyring.Secrets()))
	for _, s := range keyring.Secrets() {
		state := cli.Muted("not set")
		switch stored, err := s.Stored(); {
		case err != nil:
			state = cli.DangerStyle.Render("error: " + err.Error())
		case stored:
			state = "✓ stored"
		}
		rows = append(rows, []string{s.Label, state})
	}
	fmt.Println(cli.Table([]string{"Secret", "Status"}, rows))
	return nil
}

// KeyringSetSecretCmd stores the API token signing secret.
type KeyringSetSecretCmd struct {
	Secret   string `arg:"" optional:"" help:"Secret of at least 32 bytes. Omit with --generate."`
	Generate bool   `help:"Generate a random secret instead."`
}

func (cmd *KeyringSetSecretCmd) Run(ctx *cli.Context) error {
	secret := cmd.Secret
	switch {
	case cmd.Generate && secret != "":
		return errors.New("pass either a secret or --generate, not both")
	case cmd.Generate:
		var err error
		if secret, err = generateSecret(); err != nil {
			return err
		}
	case secret == "":
		return errors.New("a secret is required unless --generate is set")
	}

	// NewIssuer enforces the minimum secret length.
	if _, err := auth.NewIssuer(secret, 0); err != nil {
		return fmt.Errorf("invalid secret: %w", err)
	}
	if err := keyring.SetJWTSecret(secret); err != nil {
		return err
	}

	fmt.Println("✓ API token secret stored in OS keyring")
	fmt.Println("  Tokens signed with a previous secret are no longer valid")
	return nil
}

type KeyringDeleteSecretCmd struct{}

func (cmd *KeyringDeleteSecretCmd) Run(ctx *cli.Context) error {
	err := keyring.DeleteJWTSecret()
	if errors.Is(err, keyring.ErrNotFound) {
		return errors.New("no API token secret found in keyring")
	}
	if err != nil {
		return err
	}
	fmt.Println("✓ API token secret deleted from OS keyring")
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// maskPassword hides the password of a URL or key=value connection string.
func maskPassword(connStr string) string {
	if strings.Contains(connStr, "://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return connStr
		}
		return u.Redacted()
	}

	fields := strings.Fields(connStr)
	for i, f := range fields {
		if key, _, ok := strings.Cut(f, "="); ok && key == "password" {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}
