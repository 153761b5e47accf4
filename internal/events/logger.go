package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// watermillLogger adapts zerolog to watermill's LoggerAdapter, mirroring
// the teacher's helpers.NewWatermill(log.Logger) bridge (used by
// pkg/redisstream.BuildRouter) so bus traffic shows up in the same
// structured log stream as everything else instead of watermill's own
// stdlib-log default.
type watermillLogger struct {
	log zerolog.Logger
}

func newWatermillLogger(log zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{log: log}
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	ev := w.log.Error().Err(err)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	ev := w.log.Info()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	ev := w.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	ev := w.log.Trace()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	l := w.log.With().Logger()
	ctx := l.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &watermillLogger{log: ctx.Logger()}
}
