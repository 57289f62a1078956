package config

import (
	"strings"
	"time"

	"github.com/vshulcz/iischeck/internal/misc"
)

// FromEnvOrFlag returns the environment value when present, otherwise falls back to a CLI flag then default.
func FromEnvOrFlag(envKey, flagVal, def string) string {
	if v := misc.Getenv(envKey, ""); v != "" {
		return v
	}
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	return def
}

// FromEnvOrFlagBool merges boolean values from ENV and flags (defaulting to def).
func FromEnvOrFlagBool(envKey string, flagVal, def bool) bool {
	if misc.Getenv(envKey, "") != "" {
		return misc.GetBool(envKey, def)
	}
	if flagVal {
		return true
	}
	return def
}

// FromEnvOrFlagInt resolves integer values with minimum validation.
func FromEnvOrFlagInt(envKey string, flagVal, def, min int) int {
	if misc.Getenv(envKey, "") != "" {
		if n := misc.GetInt(envKey, min-1, min); n >= min {
			return n
		}
	}
	if flagVal != 0 && flagVal >= min {
		return flagVal
	}
	return def
}

// FromEnvOrFlagDuration reads a duration (seconds or Go syntax) from ENV, then the flag, then def.
// A set-but-unparsable ENV value falls through to the flag.
func FromEnvOrFlagDuration(envKey string, flagVal, def time.Duration) time.Duration {
	if ev := misc.Getenv(envKey, ""); ev != "" {
		const sentinel = time.Duration(-1 << 62)
		if d := misc.GetDuration(envKey, sentinel); d != sentinel {
			return d
		}
	}
	if flagVal != 0 {
		return flagVal
	}
	return def
}
