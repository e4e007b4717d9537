// Package logger is the process-wide structured logger. Every helper is a
// no-op until Init runs, so packages may log from init-time code and tests
// without setup.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/habitual/internal/constants"
)

// Logger is nil until Init succeeds.
var Logger *log.Logger

var file *lumberjack.Logger

type Config struct {
	Debug     bool
	ConfigDir string
	// Console mirrors log output to stderr at info level and above. The
	// serve command turns it on so requests and jobs are visible.
	Console bool
	// Level overrides the level picked from Debug and Console, e.g. "error".
	Level string
	// JSON switches to one JSON object per line.
	JSON bool
}

func (c Config) level() (log.Level, error) {
	if c.Level != "" {
		lvl, err := log.ParseLevel(c.Level)
		if err != nil {
			return 0, fmt.Errorf("invalid log level %q", c.Level)
		}
		return lvl, nil
	}
	switch {
	case c.Debug:
		return log.DebugLevel, nil
	case c.Console:
		return log.InfoLevel, nil
	}
	return log.WarnLevel, nil
}

// Init points the global logger at <ConfigDir>/logs/habitual.log, rotated
// by size and age.
func Init(cfg Config) error {
	lvl, err := cfg.level()
	if err != nil {
		return err
	}
	dir := filepath.Join(cfg.ConfigDir, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	Close()
	file = &lumberjack.Logger{
		Filename:   filepath.Join(dir, constants.AppName+".log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	var w io.Writer = file
	if cfg.Debug || cfg.Console {
		w = io.MultiWriter(os.Stderr, file)
	}

	formatter := log.TextFormatter
	if cfg.JSON {
		formatter = log.JSONFormatter
	}
	Logger = log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           lvl,
		Prefix:          constants.AppName,
		Formatter:       formatter,
	})
	return nil
}

// Close flushes and releases the log file. Logging afterwards is a no-op.
func Close() {
	if file != nil {
		file.Close()
		file = nil
	}
	Logger = nil
}

// Component tags entries with component=name. It looks up the global
// logger on every call, so package-level components work before Init.
type Component struct {
	name string
}

func With(name string) *Component {
	return &Component{name: name}
}

func (c *Component) log(lvl log.Level, msg string, keyvals []interface{}) {
	if Logger == nil {
		return
	}
	Logger.Log(lvl, msg, append([]interface{}{"component", c.name}, keyvals...)...)
}

func (c *Component) Debug(msg string, keyvals ...interface{}) { c.log(log.DebugLevel, msg, keyvals) }
func (c *Component) Info(msg string, keyvals ...interface{})  { c.log(log.InfoLevel, msg, keyvals) }
func (c *Component) Warn(msg string, keyvals ...interface{})  { c.log(log.WarnLevel, msg, keyvals) }
func (c *Component) Error(msg string, keyvals ...interface{}) { c.log(log.ErrorLevel, msg, keyvals) }

func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// Fatal logs at fatal level, when a logger is set, and exits with status 1.
func Fatal(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Fatal(msg, keyvals...)
	}
	os.Exit(1)
}
