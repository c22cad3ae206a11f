package whatsapp

import (
	"context"
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// slogLogger routes whatsmeow's printf-style logging into slog. whatsmeow
// is chatty at info level, so its info lines are demoted to debug.
type slogLogger struct {
	log *slog.Logger
}

var _ waLog.Logger = slogLogger{}

func newLogger(base *slog.Logger, module string) waLog.Logger {
	return slogLogger{log: base.With("module", module)}
}

func (l slogLogger) Errorf(msg string, args ...interface{}) {
	l.emit(slog.LevelError, msg, args)
}

func (l slogLogger) Warnf(msg string, args ...interface{}) {
	l.emit(slog.LevelWarn, msg, args)
}

func (l slogLogger) Infof(msg string, args ...interface{}) {
	l.emit(slog.LevelDebug, msg, args)
}

func (l slogLogger) Debugf(msg string, args ...interface{}) {
	l.emit(slog.LevelDebug-4, msg, args)
}

func (l slogLogger) Sub(module string) waLog.Logger {
	return slogLogger{log: l.log.With("submodule", module)}
}

func (l slogLogger) emit(level slog.Level, msg string, args []interface{}) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}

	l.log.Log(ctx, level, fmt.Sprintf(msg, args...))
}
