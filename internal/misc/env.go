package misc

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func Getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// GetDuration accepts plain seconds ("300") or Go syntax ("5m"). Non-positive values map to 0.
func GetDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, ok := ParseSeconds(v)
	if !ok {
		return def
	}
	if d <= 0 {
		return 0
	}
	return d
}

// ParseSeconds parses "60", "1.5" or "1m" into a duration.
func ParseSeconds(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(n) * time.Second, true
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second)), true
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	return 0, false
}

func GetBool(key string, def bool) bool {
	return ParseBool(os.Getenv(key), def)
}

// ParseBool understands the weewx to_bool spellings; anything else yields def.
func ParseBool(v string, def bool) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}
