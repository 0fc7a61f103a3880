// Package log is nbuild's structured logger. Each package logs through a
// module logger (log.WithModule("pipeline")) with key/value fields; output
// goes to stderr as logfmt text, colored only on a terminal.
package log

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Level orders log output by severity. --verbose lowers the level to
// LevelDebug, which echoes every toolchain command nbuild runs.
type Level int

const (
	// LevelTrace is the default under go test.
	LevelTrace Level = iota
	LevelDebug
	// LevelInfo reports stage progress and written artifacts.
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{
	LevelTrace: "trace",
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelFatal: "fatal",
}

var logrusLevels = [...]logrus.Level{
	LevelTrace: logrus.TraceLevel,
	LevelDebug: logrus.DebugLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelError: logrus.ErrorLevel,
	LevelFatal: logrus.FatalLevel,
}

// NewLevel parses the log_level config key.
func NewLevel(l string) (Level, error) {
	for lvl, name := range levelNames {
		if name == l {
			return Level(lvl), nil
		}
	}
	return LevelTrace, errors.New("invalid log level")
}

func (l Level) String() string {
	if l < LevelTrace || l > LevelFatal {
		panic("invalid level")
	}
	return levelNames[l]
}

var currLevel = LevelInfo

var backend = logrus.New()

var rootLogger = &logrusLogger{
	backend: backend,
}

// Logger logs a message with alternating key/value fields. Sub returns a
// logger that adds fields to every message, such as the layout an
// assembler is building.
type Logger interface {
	Trace(string, ...interface{})
	Debug(string, ...interface{})
	Info(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Fatal(string, ...interface{})
	Sub(...interface{}) Logger
}

func SetLevel(level Level) {
	currLevel = level
	backend.SetLevel(logrusLevels[level])
}

// SetOutput redirects log output. Colors are only used when w is a
// terminal.
func SetOutput(w io.Writer) {
	backend.SetOutput(w)
	backend.SetFormatter(&logrus.TextFormatter{
		DisableColors:    !isTerminal(w),
		DisableTimestamp: true,
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func WithModule(name string) Logger {
	return rootLogger.Sub("module", name)
}

func init() {
	SetOutput(os.Stderr)
	// set log level to trace by default in test
	if strings.HasSuffix(os.Args[0], ".test") {
		SetLevel(LevelTrace)
	}
}
