package errs

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// SetLogging configures logrus's level and output destination from a
// config value. levelName is one of error/warn/info/debug (default
// debug); filename is the log file path, or "" for stderr.
func SetLogging(levelName string, filename string) error {
	level := logrus.DebugLevel
	switch strings.ToLower(levelName) {
	case "error":
		level = logrus.ErrorLevel
	case "warn", "warning":
		level = logrus.WarnLevel
	case "info":
		level = logrus.InfoLevel
	case "debug", "":
		level = logrus.DebugLevel
	}

	out := os.Stderr
	if filename != "" {
		file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return Warnf("errs.SetLogging: unable to open logfile %s: %s", filename, err)
		}
		out = file
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		FullTimestamp:   true,
	})
	logrus.SetOutput(out)
	logrus.SetLevel(level)
	return nil
}
