package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"podcred/internal/config"
)

func Build(cfg config.Config) (*zap.Logger, error) {
	var logCfg zap.Config
	if cfg.Production {
		logCfg = zap.NewProductionConfig()

		if cfg.PrettyLogs {
			logCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			logCfg.Encoding = "console"
		}
	} else {
		logCfg = zap.NewDevelopmentConfig()
		logCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.LogLevel))

	return logCfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "error":
		return zapcore.ErrorLevel
	case "warn":
		return zapcore.WarnLevel
	case "debug":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
