package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/events"
	"github.com/julianstephens/habitual/internal/notifier"
)

// newDesktop is replaced in tests.
var newDesktop = func() events.Desktop { return notifier.New() }

// NotifyCmd sends a test notification to the tray app.
type NotifyCmd struct {
	Title   string `help:"Notification title." default:"habitual"`
	Message string `arg:"" optional:"" help:"Notification text." default:"Desktop notifications are working."`
	DryRun  bool   `help:"Print the notification to stdout instead of sending it."`
}

func (c *NotifyCmd) Run(ctx *cli.Context) error {
	if c.DryRun {
		fmt.Printf("[DryRun] %s: %s\n", c.Title, c.Message)
		return nil
	}

	err := newDesktop().Notify(ctx.Context(), c.Title, c.Message)
	if errors.Is(err, notifier.ErrTrayNotRunning) {
		return fmt.Errorf("%w: start the tray app to receive milestone notifications", err)
	}
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	fmt.Println("✓ Notification sent")
	return nil
}
