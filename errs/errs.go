// Package errs provides the log-and-wrap error helper used throughout
// this repository's receive paths, where a malformed or hostile
// message must be dropped rather than propagated.
package errs

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Warnf formats a message, logs it at Warn level and returns it as an error.
// Callers on a receive path use this exactly once at the point where a
// guard trips, then drop the message silently.
func Warnf(format string, args ...interface{}) error {
	text := fmt.Sprintf(format, args...)
	logrus.Warning(text)
	return errors.New(text)
}
