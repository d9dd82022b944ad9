package sinks

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/pace/internal/progress"
)

// LogSink emits one structured log entry per stage event. It is useful during
// development or when no terminal is attached.
type LogSink struct {
	logger *zap.Logger
	level  zapcore.Level
}

// NewLogSink wires a Zap logger to the Updater interface. Events are logged at
// debug level.
func NewLogSink(logger *zap.Logger) *LogSink {
	return NewLogSinkAt(logger, zapcore.DebugLevel)
}

// NewLogSinkAt is NewLogSink with an explicit level.
func NewLogSinkAt(logger *zap.Logger, level zapcore.Level) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger, level: level}
}

// Update implements progress.Updater.
func (s *LogSink) Update(target progress.StageID, ev progress.Event) {
	ce := s.logger.Check(s.level, "stage event")
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.String("kind", string(ev.Kind)),
		zap.Stringer("target", target),
	}
	if ev.Kind == progress.KindBegin {
		fields = append(fields,
			zap.Stringer("stage", ev.ID),
			zap.String("name", ev.Name),
			zap.Int("steps", ev.Total),
		)
	}
	ce.Write(fields...)
}
