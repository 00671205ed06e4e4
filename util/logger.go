package util

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewLogger builds a text logger writing to stderr at the given level.
//
// Arguments:
//   - level: A logrus level name ("debug", "info", "warn", ...). Empty means "info".
//
// Returns:
//   - *logrus.Logger: The configured logger.
//   - error: An error if the level name is not recognised.
func NewLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	log.SetLevel(lvl)
	return log, nil
}

// DiscardLogger returns an entry whose output goes nowhere. Library packages
// fall back to it when the caller supplies no logger.
func DiscardLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
