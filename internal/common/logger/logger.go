package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger emits one JSON line per event with a fixed set of base fields.
type Logger struct {
	service string
	l       *logrus.Logger
}

func New(service string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000000000Z07:00"})
	if os.Getenv("LOG_DEBUG") != "" {
		l.SetLevel(logrus.DebugLevel)
	}
	return &Logger{service: service, l: l}
}

func (l *Logger) entry(action string, fields map[string]any) *logrus.Entry {
	e := l.l.WithFields(logrus.Fields{
		"service":  l.service,
		"action":   action,
		"hostname": hostname(),
	})
	for k, v := range fields {
		e = e.WithField(k, v)
	}
	return e
}

func (l *Logger) Info(action string, fields map[string]any)  { l.entry(action, fields).Info(action) }
func (l *Logger) Debug(action string, fields map[string]any) { l.entry(action, fields).Debug(action) }

func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.entry(action, fields).WithError(err).Error(action)
}

func hostname() string { h, _ := os.Hostname(); return h }
