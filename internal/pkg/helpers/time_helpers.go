package helpers

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ParseDuration parses a config duration such as "15m", "12h" or "7d".
// Empty input silently yields def; malformed input logs a warning and yields def.
func ParseDuration(value string, def time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}

	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}

	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		// config may be read before the logger is set up
		log.Warn().Str("value", value).Dur("default", def).Msg("Invalid duration in configuration, using default")
		return def
	}
	return d
}
