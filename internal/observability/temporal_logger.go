package observability

import (
	"fmt"

	"github.com/rs/zerolog"
)

// TemporalLogger bridges the Temporal SDK's leveled key-value logger onto
// zerolog so SDK output lands in the same stream as application logs. The
// SDK passes fields as alternating key, value arguments; a dangling value
// without a key is logged under "missing_key" rather than dropped.
type TemporalLogger struct {
	logger zerolog.Logger
}

// NewTemporalLogger tags SDK log lines with component=temporal-sdk.
func NewTemporalLogger(logger zerolog.Logger) *TemporalLogger {
	return &TemporalLogger{logger: logger.With().Str("component", "temporal-sdk").Logger()}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.write(zerolog.DebugLevel, msg, keyvals)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.write(zerolog.InfoLevel, msg, keyvals)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.write(zerolog.WarnLevel, msg, keyvals)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.write(zerolog.ErrorLevel, msg, keyvals)
}

func (l *TemporalLogger) write(level zerolog.Level, msg string, keyvals []interface{}) {
	ev := l.logger.WithLevel(level)
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 >= len(keyvals) {
			ev = ev.Interface("missing_key", keyvals[i])
			break
		}
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		ev = ev.Interface(key, keyvals[i+1])
	}
	ev.Msg(msg)
}
