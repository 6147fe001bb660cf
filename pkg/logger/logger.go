package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Production gets JSON lines, everything else the
// text formatter.
func New(env, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		log.WithField("level", level).Warn("unknown LOG_LEVEL, using info")
	}
	log.SetLevel(lvl)

	return log
}
