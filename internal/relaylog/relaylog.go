// Package relaylog provides the structured, leveled loggers shared by
// the client and server engines, replacing the teacher's hand-rolled
// color/level logger with github.com/sirupsen/logrus, in the style
// samsamfire-gocanopen uses it across its SDO state machines (leveled,
// Fields-based, one logger instance per component rather than a single
// global).
package relaylog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logrus.Logger configured with the relay's standard text
// formatter, writing to out (os.Stdout if nil).
func New(out io.Writer, level logrus.Level) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return l
}

// Component returns a *logrus.Entry tagged with a "component" field,
// the convention used for per-component loggers in this module (the
// CLIs tag theirs "relay-client" and "relay-server").
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}
