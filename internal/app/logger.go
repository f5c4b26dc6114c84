package app

import (
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/snippets/pkg/logger"
)

// ConfigureLogging initialises the global logger, defaulting to info level
// JSON output. fields identify the binary in every entry.
func ConfigureLogging(cfg ServerConfig, fields ...zap.Field) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(cfg.LogFormat)
	if format == "" {
		format = "json"
	}
	return logger.Init(level, format, fields...)
}
