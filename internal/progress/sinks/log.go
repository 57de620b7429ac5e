package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/company-signals/internal/progress"
)

// LogSink reports run progress as structured log lines, including the
// "targets remaining" countdown after every completion.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.Int64("remaining", evt.Remaining),
			zap.Int64("total", evt.Total),
		}
		switch evt.Stage {
		case progress.StageRunStart:
			s.logger.Info("run started", fields...)
		case progress.StageTargetDone:
			fields = append(fields,
				zap.String("company", evt.Company),
				zap.String("site", evt.Site),
				zap.String("outcome", evt.Outcome),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Duration("dur", evt.Dur),
			)
			s.logger.Info("target finished", fields...)
		case progress.StageAnalysisStart:
			s.logger.Info("analysis started", fields...)
		case progress.StageProfileDone:
			fields = append(fields, zap.String("company", evt.Company))
			if evt.Note != "" {
				fields = append(fields, zap.String("note", evt.Note))
			}
			s.logger.Info("profile analyzed", fields...)
		case progress.StageRunDone:
			s.logger.Info("run finished", append(fields, zap.Duration("dur", evt.Dur))...)
		case progress.StageRunError:
			s.logger.Warn("run failed", append(fields, zap.String("note", evt.Note))...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
