package notifications

import (
	"fmt"
	"strings"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

type NotificationCmd struct {
	List NotificationListCmd `cmd:"" default:"withargs" help:"List notifications, newest first."`
	Read NotificationReadCmd `cmd:"" help:"Mark notifications as read."`
}

type NotificationListCmd struct {
	Unread bool `help:"Only show unread notifications."`
	Limit  int  `help:"Maximum number of notifications to show." default:"20"`
}

func (c *NotificationListCmd) Run(ctx *cli.Context) error {
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}

	list, err := ctx.Services.Notifications.List(ctx.Context(), u.ID, c.Unread, c.Limit)
	if err != nil {
		return err
	}
	unread, err := ctx.Services.Notifications.UnreadCount(ctx.Context(), u.ID)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No notifications.")
		return nil
	}

	loc := cli.Location(u)
	rows := make([][]string, 0, len(list))
	for _, n := range list {
		status := cli.Muted("read")
		if n.Status == models.NotificationUnread {
			status = "● new"
		}
		rows = append(rows, []string{
			shortID(n.ID),
			n.CreatedAt.In(loc).Format(constants.DateFormat + " " + constants.TimeFormat),
			n.Message,
			status,
		})
	}
	fmt.Println(cli.Table([]string{"ID", "When", "Message", "Status"}, rows))
	fmt.Printf("%d unread\n", unread)
	return nil
}

type NotificationReadCmd struct {
	ID  string `arg:"" optional:"" help:"Notification ID, or a unique prefix of one."`
	All bool   `help:"Mark every notification as read."`
}

func (c *NotificationReadCmd) Run(ctx *cli.Context) error {
	if c.All == (c.ID != "") {
		return fmt.Errorf("pass either a notification ID or --all")
	}
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}

	if c.All {
		n, err := ctx.Services.Notifications.MarkAllRead(ctx.Context(), u.ID)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Marked %d notifications as read\n", n)
		return nil
	}

	id, err := resolveID(ctx, u.ID, c.ID)
	if err != nil {
		return err
	}
	if err := ctx.Services.Notifications.MarkRead(ctx.Context(), u.ID, id); err != nil {
		return err
	}
	fmt.Printf("✓ Marked notification %s as read\n", shortID(id))
	return nil
}

const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

// resolveID expands a prefix as printed by list to a full notification ID.
func resolveID(ctx *cli.Context, userID, ref string) (string, error) {
	list, err := ctx.Services.Notifications.List(ctx.Context(), userID, false, 0)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, n := range list {
		if n.ID == ref {
			return n.ID, nil
		}
		if strings.HasPrefix(n.ID, ref) {
			matches = append(matches, n.ID)
		}
	}
	switch len(matches) {
	case 0:
		// Older than the listing window; let the store decide.
		return ref, nil
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("notification prefix %q is ambiguous (%d matches)", ref, len(matches))
}
