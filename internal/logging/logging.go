// Package logging 构建应用使用的 zap 日志器。
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"arbitrage-sim-lab/internal/config"
)

// New 构建日志器
// 输出到 stderr；配置了 log.file 时同时写入按大小轮转的日志文件。
// 参数 app: 日志级别、格式与应用标识
// 参数 file: 日志文件配置
func New(app config.AppConfig, file config.LogConfig) *zap.Logger {
	return build(app, file, os.Stderr)
}

func build(app config.AppConfig, file config.LogConfig, stderr io.Writer) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(app.LogLevel); err != nil {
		lvl = zapcore.InfoLevel
	}
	level := zap.NewAtomicLevelAt(lvl)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if app.LogFormat == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(stderr)), level),
	}

	// 文件始终使用 JSON，便于事后检索
	if file.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   file.File,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	if app.Name != "" {
		logger = logger.With(zap.String("app", app.Name))
	}
	if app.Env != "" {
		logger = logger.With(zap.String("env", app.Env))
	}
	return logger
}
