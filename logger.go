package cfscan

import (
	"log/slog"
	"os"

	"github.com/sirupsen/logrus"
)

var level = new(slog.LevelVar)

// Log is the package-level logger used throughout cfscan. Replace it
// (or call SetLevel) before starting a scan to change verbosity.
var Log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

// SetLevel maps a logrus-style numeric level (as used by the CLI's
// --log-level flag) onto the slog level used by Log. Kept as logrus.Level
// purely for the numeric convention, not for logrus's own logger.
func SetLevel(l logrus.Level) {
	switch l {
	case logrus.TraceLevel, logrus.DebugLevel:
		level.Set(slog.LevelDebug)
	case logrus.InfoLevel:
		level.Set(slog.LevelInfo)
	case logrus.WarnLevel:
		level.Set(slog.LevelWarn)
	default:
		level.Set(slog.LevelError)
	}
}
