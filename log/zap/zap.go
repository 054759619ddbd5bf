// Package zap adapts a *zap.Logger to keyedcache.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/keyedcache"
	"go.uber.org/zap"
)

var _ keyedcache.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New wraps l, naming the logger "keyedcache". A nil l logs nothing.
func New(l *zap.Logger) ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return ZapLogger{L: l.Named("keyedcache")}
}

func (z ZapLogger) Debug(msg string, f keyedcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f keyedcache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f keyedcache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f keyedcache.Fields) { z.L.Error(msg, zf(f)...) }

// zf sorts fields by name; "err" values become zap.Error.
func zf(f keyedcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]zap.Field, 0, len(f))
	for _, k := range names {
		if err, ok := f[k].(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
