package registry

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger routes cron's own diagnostics, including recovered job panics,
// into zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

var _ cron.Logger = (*cronLogger)(nil)

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "err", err)...)
}
