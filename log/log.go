// Package log is the leveled logger used by gotestfail. Messages are written
// to stderr with a colored level prefix.
package log

import (
	"bytes"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

type Level uint8

const (
	ErrorLevel Level = iota
	WarnLevel
	DebugLevel
)

var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	return &logrus.Logger{
		Out:       out,
		Formatter: prefixFormatter{},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.WarnLevel,
	}
}

// prefixFormatter writes the message with a short colored prefix for the
// level, and nothing else. Fields are not supported.
type prefixFormatter struct{}

func (prefixFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	buf := new(bytes.Buffer)
	switch entry.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		buf.WriteString(color.RedString("ERROR "))
	case logrus.WarnLevel:
		buf.WriteString(color.YellowString("WARN "))
	}
	buf.WriteString(entry.Message)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// SetLevel for the global logger.
func SetLevel(l Level) {
	switch l {
	case ErrorLevel:
		logger.SetLevel(logrus.ErrorLevel)
	case WarnLevel:
		logger.SetLevel(logrus.WarnLevel)
	default:
		logger.SetLevel(logrus.DebugLevel)
	}
}

// SetOutput replaces the writer used by the global logger. It returns a
// function which restores the previous writer.
func SetOutput(out io.Writer) (reset func()) {
	prev := logger.Out
	logger.SetOutput(out)
	return func() {
		logger.SetOutput(prev)
	}
}

// Warnf prints the message to stderr, with a yellow WARN prefix.
func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// Debugf prints the message to stderr, with no prefix.
func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// Errorf prints the message to stderr, with a red ERROR prefix.
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// Error prints the message to stderr, with a red ERROR prefix.
func Error(msg string) {
	logger.Error(msg)
}
