package bullq

import "go.uber.org/zap"

// ZapLogger adapts a *zap.Logger to the Logger interface so production
// callers can get structured, leveled logging out of the coordination
// internals without the core depending on zap directly.
type ZapLogger struct {
	l *zap.SugaredLogger
}

// NewZapLogger wraps the given zap logger. If l is nil, a no-op zap logger
// is used.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{l: l.Sugar()}
}

func (z *ZapLogger) Debugf(format string, args ...any) { z.l.Debugf(format, args...) }
func (z *ZapLogger) Infof(format string, args ...any)  { z.l.Infof(format, args...) }
func (z *ZapLogger) Warnf(format string, args ...any)  { z.l.Warnf(format, args...) }
func (z *ZapLogger) Errorf(format string, args ...any) { z.l.Errorf(format, args...) }
