// Package envutil provides the small typed env-var accessors the config
// loader is built from, logging fallbacks as the teacher's utils package does.
package envutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

func GetEnv(key, fallback string, log *logger.Logger) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if log != nil {
		log.Debug("env var not set, using fallback", "key", key)
	}
	return fallback
}

func GetEnvAsInt(key string, fallback int, log *logger.Logger) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.Warn("env var not an int, using fallback", "key", key, "value", raw)
		}
		return fallback
	}
	return v
}

func GetEnvAsBool(key string, fallback bool, log *logger.Logger) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		if log != nil {
			log.Warn("env var not a bool, using fallback", "key", key, "value", raw)
		}
		return fallback
	}
	return v
}

func GetEnvAsFloat(key string, fallback float64, log *logger.Logger) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if log != nil {
			log.Warn("env var not a float, using fallback", "key", key, "value", raw)
		}
		return fallback
	}
	return v
}

func RequireEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}
