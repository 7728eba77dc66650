package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronLogger 将 cron 内部日志转到 slog
// cron 的 Info 日志（wake/run/schedule）较为频繁，降级为 Debug
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}

var _ cron.Logger = cronLogger{}
