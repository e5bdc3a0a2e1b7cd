package als

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var l *logrus.Logger

func init() {
	l = logrus.New()
	l.Formatter = &logrus.JSONFormatter{}
	l.SetOutput(os.Stdout)
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
}
