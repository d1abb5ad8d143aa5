package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"postboard/internal/config"
)

const logLevelEnvKey = "POSTBOARD_LOG_LEVEL"

type logLevelSource string

const (
	sourceFlag    logLevelSource = "flag"
	sourceEnv     logLevelSource = "env"
	sourceConfig  logLevelSource = "config"
	sourceDefault logLevelSource = "default"
)

// configureLoggerForCLI installs the default slog logger. An invalid flag is an
// error; an invalid env or config value falls back to the default level and
// returns a warning for the caller to print.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	envLevel := os.Getenv(logLevelEnvKey)
	rawLevel, source := selectedLogLevel(flagLevel, envLevel, configLevel)

	level, err := parseLogLevel(rawLevel)
	if err == nil {
		slog.SetDefault(newLogger(os.Stderr, level))
		return "", nil
	}
	if source == sourceFlag {
		return "", fmt.Errorf("invalid --log-level %q", flagLevel)
	}

	fallback, _ := parseLogLevel(config.DefaultLogLevel)
	slog.SetDefault(newLogger(os.Stderr, fallback))

	switch source {
	case sourceEnv:
		return fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, envLevel, config.DefaultLogLevel), nil
	case sourceConfig:
		return fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", configLevel, config.DefaultLogLevel), nil
	default:
		return "", nil
	}
}

func selectedLogLevel(flagLevel, envLevel, configLevel string) (string, logLevelSource) {
	candidates := []struct {
		value  string
		source logLevelSource
	}{
		{flagLevel, sourceFlag},
		{envLevel, sourceEnv},
		{configLevel, sourceConfig},
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.value) != "" {
			return c.value, c.source
		}
	}
	return "", sourceDefault
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		return slog.LevelDebug, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}

	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}
	return slog.LevelDebug, fmt.Errorf("invalid log level %q", raw)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
