package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Packages derive component loggers from it
// with For.
var Log = logrus.New()

// Entry is re-exported so callers don't need to import logrus directly.
type Entry = logrus.Entry

// Init configures the global logger. Format is "json" (default) or "text".
// Level is any logrus level name; EVMOTOR_DEBUG=true forces debug.
func Init(level, format string) {
	switch strings.ToLower(format) {
	case "text":
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	Log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if os.Getenv("EVMOTOR_DEBUG") == "true" {
		lvl = logrus.DebugLevel
	}
	Log.SetLevel(lvl)
}

// For returns a logger tagged with the given component name.
func For(component string) *Entry {
	return Log.WithField("component", component)
}

// OrDefault returns entry when non-nil, otherwise a component logger.
func OrDefault(entry *Entry, component string) *Entry {
	if entry != nil {
		return entry
	}
	return For(component)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
