// control/logging.go
// Author: momentics <momentics@gmail.com>
//
// Logger construction from configuration. The caller should defer
// logger.Sync().

package control

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogger builds a zap.Logger from the provided configuration and
// sets it as the global logger.
func SetupLogger(c LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.Level) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}

	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	var ws zapcore.WriteSyncer
	switch {
	case c.File != "":
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    maxInt(c.MaxSizeMB, 10),
			MaxBackups: maxInt(c.MaxBackups, 1),
			MaxAge:     maxInt(c.MaxAgeDays, 7),
			Compress:   true,
		})
	default:
		ws = zapcore.AddSync(os.Stderr)
	}

	logger := zap.New(zapcore.NewCore(encoder, ws, level), zap.AddCaller())
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
