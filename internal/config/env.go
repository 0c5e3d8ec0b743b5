// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ratewait/internal/log"
)

// Environment keys read by the Loader.
const (
	EnvListen          = "RATEWAIT_LISTEN"
	EnvLogLevel        = "RATEWAIT_LOG_LEVEL"
	EnvLogService      = "RATEWAIT_LOG_SERVICE"
	EnvStore           = "RATEWAIT_STORE"
	EnvRedisAddr       = "RATEWAIT_REDIS_ADDR"
	EnvRedisPassword   = "RATEWAIT_REDIS_PASSWORD"
	EnvRedisDB         = "RATEWAIT_REDIS_DB"
	EnvBadgerPath      = "RATEWAIT_BADGER_PATH"
	EnvSQLitePath      = "RATEWAIT_SQLITE_PATH"
	EnvKeyTTL          = "RATEWAIT_KEY_TTL"
	EnvAlgorithm       = "RATEWAIT_ALGORITHM"
	EnvGlobalRate      = "RATEWAIT_GLOBAL_RATE"
	EnvGlobalBurst     = "RATEWAIT_GLOBAL_BURST"
	EnvClientRate      = "RATEWAIT_CLIENT_RATE"
	EnvClientBurst     = "RATEWAIT_CLIENT_BURST"
	EnvMaxWait         = "RATEWAIT_MAX_WAIT"
	EnvTracingEnabled  = "RATEWAIT_TRACING_ENABLED"
	EnvTracingExporter = "RATEWAIT_TRACING_EXPORTER"
	EnvTracingEndpoint = "RATEWAIT_TRACING_ENDPOINT"
	EnvTracingSampling = "RATEWAIT_TRACING_SAMPLING"
)

// ParseString reads a string from environment variable or returns default value.
// Values of keys that look sensitive are never logged.
func ParseString(key, defaultValue string) string {
	return parseEnv(log.WithComponent("config"), key, defaultValue, func(v string) (string, error) {
		return v, nil
	})
}

// ParseInt reads an integer from environment variable or returns default value.
// Unparseable input falls back to the default with a warning.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(log.WithComponent("config"), key, defaultValue, strconv.Atoi)
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(log.WithComponent("config"), key, defaultValue, func(v string) (float64, error) {
		return strconv.ParseFloat(v, 64)
	})
}

// ParseDuration reads a duration in Go format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(log.WithComponent("config"), key, defaultValue, time.ParseDuration)
}

// ParseBool accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(log.WithComponent("config"), key, defaultValue, parseBoolWord)
}

func parseBoolWord(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", v)
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "token") || strings.Contains(lower, "password")
}

func parseEnv[T any](logger zerolog.Logger, key string, defaultValue T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Debug().
			Str("key", key).
			Str("source", "default").
			Msg("using default value")
		return defaultValue
	}
	if v == "" {
		logger.Debug().
			Str("key", key).
			Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		ev := logger.Warn().Str("key", key).Err(err)
		if !isSensitive(key) {
			ev = ev.Str("value", v)
		}
		ev.Msg("invalid environment variable, using default")
		return defaultValue
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", parsed)
	}
	ev.Msg("using environment variable")
	return parsed
}
