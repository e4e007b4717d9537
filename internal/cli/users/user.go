package users

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/service"
)

var stdin io.Reader = os.Stdin

type UserCmd struct {
	Add   UserAddCmd   `cmd:"" help:"Create a user account."`
	Show  UserShowCmd  `cmd:"" help:"Show the current user."`
	Token UserTokenCmd `cmd:"" help:"Issue an API token for a user."`
}

type UserAddCmd struct {
	Username    string `arg:"" help:"Login name."`
	Email       string `help:"Email address."`
	DisplayName string `help:"Name shown to friends."`
	Timezone    string `help:"IANA timezone used to decide which day a completion falls on." default:"UTC"`
	Password    string `help:"Account password. Prompted for when not set." env:"HABITUAL_PASSWORD"`
}

func (c *UserAddCmd) Run(ctx *cli.Context) error {
	password, err := readPassword(c.Password)
	if err != nil {
		return err
	}

	u, err := ctx.Services.Users.Register(ctx.Context(), service.RegisterInput{
		Username:    c.Username,
		Password:    password,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		Timezone:    c.Timezone,
	})
	if err != nil {
		return err
	}

	fmt.Printf("✓ Created user: %s (%s)\n", u.Username, u.Timezone)
	fmt.Printf("  Use --user %s or set HABITUAL_USER=%s to act as this user.\n", u.Username, u.Username)
	return nil
}

type UserShowCmd struct{}

func (c *UserShowCmd) Run(ctx *cli.Context) error {
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s\n", u.Username, cli.Muted(u.ID))
	if u.DisplayName != "" {
		fmt.Printf("Name:     %s\n", u.DisplayName)
	}
	if u.Email != "" {
		fmt.Printf("Email:    %s\n", u.Email)
	}
	fmt.Printf("Timezone: %s\n", u.Timezone)
	fmt.Printf("Joined:   %s\n", u.CreatedAt.In(cli.Location(u)).Format(constants.DateFormat))

	unread, err := ctx.Services.Notifications.UnreadCount(ctx.Context(), u.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Unread:   %d notifications\n", unread)
	return nil
}

type UserTokenCmd struct {
	Password string `help:"Account password. Prompted for when not set." env:"HABITUAL_PASSWORD"`
}

func (c *UserTokenCmd) Run(ctx *cli.Context) error {
	if ctx.Username == "" {
		return fmt.Errorf("no user selected, pass --user or set HABITUAL_USER")
	}
	issuer, err := ctx.Issuer()
	if err != nil {
		return err
	}
	password, err := readPassword(c.Password)
	if err != nil {
		return err
	}

	tok, err := service.NewUserService(ctx.Store, issuer).Login(ctx.Context(), ctx.Username, password)
	if err != nil {
		return err
	}

	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "Expires: %s\n", tok.ExpiresAt.Format(constants.DateFormat+" "+constants.TimeFormat))
	return nil
}

// readPassword returns flag when set. Otherwise it prompts without echo on a
// terminal, or reads one line from piped input.
func readPassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(f.Fd()) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(f.Fd())
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}
