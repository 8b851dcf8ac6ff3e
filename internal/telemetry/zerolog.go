package telemetry

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface. kv pairs are
// applied as structured fields (key1, val1, key2, val2, ...); an odd trailing
// key is logged under "extra" rather than dropped silently.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

func (l *ZerologLogger) with(kv []any) *zerolog.Event {
	return withFields(l.log.Log(), kv)
}

func (l *ZerologLogger) Debug(_ context.Context, msg string, kv ...any) {
	withFields(l.log.Debug(), kv).Msg(msg)
}

func (l *ZerologLogger) Info(_ context.Context, msg string, kv ...any) {
	withFields(l.log.Info(), kv).Msg(msg)
}

func (l *ZerologLogger) Warn(_ context.Context, msg string, kv ...any) {
	withFields(l.log.Warn(), kv).Msg(msg)
}

func (l *ZerologLogger) Error(_ context.Context, msg string, kv ...any) {
	withFields(l.log.Error(), kv).Msg(msg)
}

func withFields(evt *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		evt = evt.Interface(key, kv[i+1])
	}
	if len(kv)%2 != 0 {
		evt = evt.Interface("extra", kv[len(kv)-1])
	}
	return evt
}
