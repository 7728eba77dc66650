package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger 按配置创建进程级 logger
// 配置了 log_file.path 时同时写入 stderr 与滚动日志文件，返回的 io.Closer 用于退出时关闭文件
func NewLogger(level slog.Level, format LogFormat, file LogFileConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	if stderr == nil {
		stderr = os.Stderr
	}

	var out io.Writer = stderr
	var closer io.Closer = nopCloser{}
	if file.Path != "" {
		rotating := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSize,
			MaxAge:     file.MaxAge,
			MaxBackups: file.MaxBackups,
			Compress:   file.Compress,
			LocalTime:  true,
		}
		out = io.MultiWriter(stderr, rotating)
		closer = rotating
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format {
	case LogFormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	case LogFormatText, "":
		handler = slog.NewTextHandler(out, opts)
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s", format)
	}

	return slog.New(handler), closer, nil
}

// SetupLogging 创建 logger 并设为 slog 默认 logger
func SetupLogging(cfg *Config) (io.Closer, error) {
	logger, closer, err := NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile, nil)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
