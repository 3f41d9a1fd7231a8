package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// SetupLogger configures the package-level logrus logger from the
// application config. Production environments get JSON output for log
// aggregation, everything else keeps the default text formatter.
func SetupLogger(level, environment string) error {
	logrus.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(parsed)

	if environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	return nil
}
