// Package logging builds the process logger.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/hanpama/graphpress/internal/config"
)

// Fields represents structured logging fields.
type Fields = logrus.Fields

// NewLogger creates a JSON logger at the level named by LOG_LEVEL.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithService creates a logger whose entries all carry a service field.
func NewLoggerWithService(service string) *logrus.Logger {
	logger := NewLogger()
	logger.AddHook(serviceHook(service))
	return logger
}

type serviceHook string

func (serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["service"]; !ok {
		e.Data["service"] = string(h)
	}
	return nil
}
