// Package logging configures the github.com/sirupsen/logrus logger
// every other package logs through.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger configured for this core: text output to
// stderr with full timestamps, at the given level ("debug", "info",
// "warn", "error" — unrecognized values fall back to "info").
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}
