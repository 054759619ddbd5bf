// Package logrus adapts a *logrus.Entry to keyedcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/keyedcache"
)

var _ keyedcache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every entry with component=keyedcache.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "keyedcache")}
}

func (l LogrusLogger) Debug(msg string, f keyedcache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f keyedcache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f keyedcache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f keyedcache.Fields) { l.with(f).Error(msg) }

// with maps an "err" field onto logrus' error key.
func (l LogrusLogger) with(f keyedcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out[logrus.ErrorKey] = err
			continue
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}
