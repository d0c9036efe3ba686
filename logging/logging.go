// Package logging wraps logrus into the *Logger shape used throughout
// the core, mirroring the teacher's own logging.go wrapper-type
// pattern (a small struct threading a configured logger, rather than a
// package-global). Level and optional file-sink behaviour follow the
// source CLI's --log-level / --log-file semantics.
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a configured logrus.Logger. Constructed once in main
// and passed down explicitly.
type Logger struct {
	entry *logrus.Logger
}

// Options configures logger construction.
type Options struct {
	// Level is one of DEBUG, INFO, WARNING, ERROR (upper case only;
	// empty means INFO), matching spec.md §6's --log-level choices.
	Level string
	// FilePath, if set, receives every DEBUG-and-above message while
	// the console handler is limited to Level, mirroring cli.py's
	// dual-handler setup when --log-file is given.
	FilePath string
}

// New constructs a Logger from Options.
func New(opts Options) (*Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	base := logrus.New()
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if opts.FilePath == "" {
		base.SetOutput(os.Stderr)
		base.SetLevel(level)
		return &Logger{entry: base}, nil
	}

	f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", opts.FilePath, err)
	}

	// File sink gets everything; console handler stays at the
	// requested level. logrus has one level per logger, so we run two
	// loggers under one facade: the base logger writes DEBUG+ to the
	// file, and a hook mirrors Level-and-above to stderr.
	base.SetOutput(f)
	base.SetLevel(logrus.DebugLevel)
	base.AddHook(&consoleMirrorHook{minLevel: level, out: os.Stderr})

	return &Logger{entry: base}, nil
}

func parseLevel(level string) (logrus.Level, error) {
	switch level {
	case "", "INFO":
		return logrus.InfoLevel, nil
	case "DEBUG":
		return logrus.DebugLevel, nil
	case "WARNING":
		return logrus.WarnLevel, nil
	case "ERROR":
		return logrus.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

type consoleMirrorHook struct {
	minLevel logrus.Level
	out      *os.File
}

func (h *consoleMirrorHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *consoleMirrorHook) Fire(entry *logrus.Entry) error {
	if entry.Level > h.minLevel {
		return nil
	}
	line, err := entry.String()
	if err != nil {
		return err
	}
	_, err = h.out.WriteString(line)
	return err
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// WithField returns a derived context logger, useful for tagging log
// lines with hostname/plugin/archive without formatting it into every
// call site by hand.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.entry.WithField(key, value)
}
