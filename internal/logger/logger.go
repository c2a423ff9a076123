package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/paiml/probar-sub002/internal/config"
)

// LevelEnv 覆盖配置文件中日志级别的环境变量
const LevelEnv = "STATESYNC_LOG_LEVEL"

// NewLogger creates a new hclog.Logger based on the YAML configuration and the provided name.
// Logs go to stderr so that reports written to stdout stay machine readable.
func NewLogger(cfg *config.Config, name string) hclog.Logger {
	return newLogger(cfg, name, os.Stderr)
}

func newLogger(cfg *config.Config, name string, out io.Writer) hclog.Logger {
	if cfg == nil {
		cfg = config.Default()
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		DisableTime: cfg.Logger.DisableTime,
		JSONFormat:  cfg.Logger.JSONFormat,
		Output:      out,
		Level:       determineLogLevel(cfg),
	})
}

// determineLogLevel returns the level from the environment first, then from the configuration.
func determineLogLevel(cfg *config.Config) hclog.Level {
	if env := os.Getenv(LevelEnv); env != "" {
		return parseLogLevel(env)
	}
	return parseLogLevel(cfg.Logger.Level)
}

// parseLogLevel converts a string level to hclog.Level, defaulting to INFO.
func parseLogLevel(levelStr string) hclog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "INFO", "":
		return hclog.Info
	case "WARN", "WARNING":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	case "OFF":
		return hclog.Off
	default:
		hclog.New(&hclog.LoggerOptions{
			Level:       hclog.Warn,
			DisableTime: true,
			Output:      os.Stderr,
		}).Warn("Unrecognized log level, defaulting to INFO", "providedLevel", levelStr)
		return hclog.Info
	}
}
