// Package notifier pushes desktop notifications to the habitual tray app
// over its local webhook.
//
// The tray app advertises itself through a lockfile holding "port|pid|secret".
// A notification is only sent when that pid still belongs to a running tray
// executable.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
)

// ErrTrayNotRunning is returned when no tray app is listening.
var ErrTrayNotRunning = errors.New(constants.TrayExecutablePrefix + " is not running")

const secretHeader = "X-Habitual-Secret"

var log = logger.With("notifier")

// Payload is the JSON body the tray webhook accepts.
type Payload struct {
	Title      string `json:"title,omitempty"`
	Text       string `json:"text"`
	DurationMs uint32 `json:"duration_ms"`
}

type lockfile struct {
	Port   int
	PID    int
	Secret string
}

func parseLockfile(raw string) (lockfile, error) {
	fields := strings.Split(strings.TrimSpace(raw), "|")
	if len(fields) != 3 {
		return lockfile{}, errors.New("lockfile is malformed")
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	var lf lockfile
	var err error
	if fields[0] == "" {
		return lockfile{}, errors.New("port in lockfile is empty")
	}
	if lf.Port, err = strconv.Atoi(fields[0]); err != nil {
		return lockfile{}, errors.New("invalid port number in lockfile")
	}
	if lf.Port < 1 || lf.Port > 65535 {
		return lockfile{}, fmt.Errorf("port number %d is outside valid range (1-65535)", lf.Port)
	}
	if lf.PID, err = strconv.Atoi(fields[1]); err != nil {
		return lockfile{}, errors.New("invalid process ID in lockfile")
	}
	if lf.Secret = fields[2]; lf.Secret == "" {
		return lockfile{}, errors.New("secret in lockfile is empty")
	}
	return lf, nil
}

// rejectedError is a response the tray app will keep giving, such as a
// wrong secret. It is not retried.
type rejectedError struct {
	status int
	body   string
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("notification rejected with status %d: %s", e.status, e.body)
}

type Notifier struct {
	client      *http.Client
	configDir   func() (string, error)
	findProcess func(pid int) (ps.Process, error)
}

func New() *Notifier {
	return &Notifier{
		client:      &http.Client{Timeout: 5 * time.Second},
		configDir:   os.UserConfigDir,
		findProcess: ps.FindProcess,
	}
}

// Notify shows title and text in the tray app. Transient webhook failures
// are retried; a tray app that is not running is reported immediately.
func (n *Notifier) Notify(ctx context.Context, title, text string) error {
	dir, err := n.trayDir()
	if err != nil {
		return err
	}
	lf, err := n.locate(filepath.Join(dir, constants.NotifierLockfileName))
	if err != nil {
		return err
	}

	body := Payload{Title: title, Text: text, DurationMs: constants.NotificationDurationMs}
	for attempt := 1; ; attempt++ {
		err = n.post(ctx, lf, body)
		var rejected *rejectedError
		if err == nil || errors.As(err, &rejected) || attempt >= constants.NotifyMaxRetries {
			return err
		}
		log.Debug("tray notification failed, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(constants.NotifyRetryDelay):
		}
	}
}

// trayDir is where the tray app keeps its lockfile: the lockfile_dir from
// its settings.json when set, otherwise its config directory.
func (n *Notifier) trayDir() (string, error) {
	base, err := n.configDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	dir := filepath.Join(base, constants.TrayAppIdentifier)

	data, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	if err != nil {
		return dir, nil
	}
	var settings struct {
		Settings struct {
			LockfileDir string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if json.Unmarshal(data, &settings) == nil && settings.Settings.LockfileDir != "" {
		return settings.Settings.LockfileDir, nil
	}
	return dir, nil
}

func (n *Notifier) locate(path string) (lockfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return lockfile{}, ErrTrayNotRunning
	}
	lf, err := parseLockfile(string(raw))
	if err != nil {
		return lockfile{}, err
	}

	proc, err := n.findProcess(lf.PID)
	if err != nil || proc == nil {
		// A stale lockfile left behind by a crashed tray app.
		return lockfile{}, ErrTrayNotRunning
	}
	if exe := proc.Executable(); !strings.HasPrefix(exe, constants.TrayExecutablePrefix) {
		return lockfile{}, fmt.Errorf("process with PID %d is not %s (is %s)", lf.PID, constants.TrayExecutablePrefix, exe)
	}
	return lf, nil
}

func (n *Notifier) post(ctx context.Context, lf lockfile, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	url := "http://127.0.0.1:" + strconv.Itoa(lf.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, lf.Secret)

	res, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	if res.StatusCode >= 400 && res.StatusCode < 500 {
		return &rejectedError{status: res.StatusCode, body: string(msg)}
	}
	return fmt.Errorf("notification failed with status %d: %s", res.StatusCode, string(msg))
}
