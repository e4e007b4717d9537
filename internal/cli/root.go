package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitual/internal/auth"
	"github.com/julianstephens/habitual/internal/backup"
	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/events"
	"github.com/julianstephens/habitual/internal/keyring"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/service"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/storage/sqlite"
	"github.com/julianstephens/habitual/internal/utils"
)

// Context is handed to every command's Run method.
type Context struct {
	// Ctx is cancelled on SIGINT or SIGTERM. It may be nil in tests.
	Ctx context.Context

	Store    storage.Provider
	Services *service.Services

	// Bus carries milestones from CLI completions to the local sinks. It is
	// drained by the command rather than run in the background.
	Bus *events.Bus

	// Username selects the account local commands act on.
	Username string

	// JWTSecret signs API tokens. Empty means the keyring secret.
	JWTSecret string
}

// Context returns the command's context.
func (c *Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup() {
	if _, ok := c.Store.(*sqlite.Store); !ok {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.CreateBackup(); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// CurrentUser resolves --user to a stored account.
func (c *Context) CurrentUser(ctx context.Context) (models.User, error) {
	if strings.TrimSpace(c.Username) == "" {
		return models.User{}, fmt.Errorf("no user selected, pass --user or set HABITUAL_USER")
	}
	u, err := c.Services.Users.GetByUsername(ctx, c.Username)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.User{}, fmt.Errorf("user %q not found, create it with '%s user add %s'", c.Username, constants.AppName, c.Username)
	}
	return u, err
}

// Location returns the user's timezone, falling back to UTC.
func Location(u models.User) *time.Location {
	return utils.LocationOrUTC(u.Timezone)
}

// FindHabit resolves ref, a habit ID or name, among the user's habits.
// Active habits win over archived ones, and archived over deleted, so a
// deleted habit whose name was reused is only found by ID.
func (c *Context) FindHabit(ctx context.Context, userID, ref string, includeArchived, includeDeleted bool) (models.Habit, error) {
	habits, err := c.Services.Habits.List(ctx, userID, includeArchived, includeDeleted)
	if err != nil {
		return models.Habit{}, err
	}

	var found *models.Habit
	rank := func(h models.Habit) int {
		switch {
		case h.DeletedAt != nil:
			return 2
		case h.ArchivedAt != nil:
			return 1
		}
		return 0
	}
	for i := range habits {
		h := habits[i]
		if h.ID == ref {
			return h, nil
		}
		if !strings.EqualFold(h.Name, ref) {
			continue
		}
		if found == nil || rank(h) < rank(*found) {
			found = &habits[i]
		}
	}
	if found == nil {
		return models.Habit{}, fmt.Errorf("habit %q not found", ref)
	}
	return *found, nil
}

// FlushMilestones delivers milestones queued by the command before it exits.
func (c *Context) FlushMilestones(ctx context.Context) {
	if c.Bus == nil {
		return
	}
	if n := c.Bus.Drain(ctx); n > 0 {
		logger.Debug("Delivered queued milestones", "count", n)
	}
}

// Issuer builds the token issuer from --jwt-secret, falling back to the
// secret stored in the OS keyring.
func (c *Context) Issuer() (*auth.Issuer, error) {
	secret := c.JWTSecret
	if secret == "" {
		stored, err := keyring.GetJWTSecret()
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, fmt.Errorf("no JWT secret configured: pass --jwt-secret, set HABITUAL_JWT_SECRET or run '%s keyring set-secret --generate'", constants.AppName)
		}
		if err != nil {
			return nil, err
		}
		secret = stored
	}
	return auth.NewIssuer(secret, 0)
}
