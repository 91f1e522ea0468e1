package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/misc"
)

// Site is the raw option mapping of one uploader section. Values are kept untyped and
// parsed on access, so a bad value only fails where it is used.
type Site struct {
	name string
	opts map[string]any
}

// NewSite copies opts with lower-cased keys.
func NewSite(name string, opts map[string]any) *Site {
	s := &Site{name: name, opts: make(map[string]any, len(opts))}
	for k, v := range opts {
		s.opts[strings.ToLower(k)] = v
	}
	return s
}

// Name returns the section name.
func (s *Site) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Keys returns the configured option names, sorted.
func (s *Site) Keys() []string {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.opts))
}

// Lookup returns the raw value. A present key with a nil value counts as absent.
func (s *Site) Lookup(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.opts[strings.ToLower(key)]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Require reports the first missing key as domain.ErrMissingOption. Values are not type-checked.
func (s *Site) Require(keys ...string) error {
	for _, k := range keys {
		if _, ok := s.Lookup(k); !ok {
			return fmt.Errorf("%w %s", domain.ErrMissingOption, k)
		}
	}
	return nil
}

// SetDefault stores def unless key is already present.
func (s *Site) SetDefault(key string, def any) {
	if _, ok := s.Lookup(key); !ok {
		s.opts[strings.ToLower(key)] = def
	}
}

func (s *Site) raw(key string) (string, bool) {
	v, ok := s.Lookup(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(fmt.Sprint(v)), true
}

// String returns the option as text, or def when absent.
func (s *Site) String(key, def string) string {
	if v, ok := s.raw(key); ok {
		return v
	}
	return def
}

// Bool parses weewx-style booleans; unknown spellings yield def.
func (s *Site) Bool(key string, def bool) bool {
	if v, ok := s.raw(key); ok {
		return misc.ParseBool(v, def)
	}
	return def
}

// Int parses an integer option.
func (s *Site) Int(key string, def int) (int, error) {
	v, ok := s.raw(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil && f == float64(int(f)) {
			return int(f), nil
		}
		return 0, fmt.Errorf("%s.%s: invalid integer %q", s.name, key, v)
	}
	return n, nil
}

// Duration parses seconds ("300") or Go syntax ("5m").
func (s *Site) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s.raw(key)
	if !ok || v == "" {
		return def, nil
	}
	d, ok := misc.ParseSeconds(v)
	if !ok {
		return 0, fmt.Errorf("%s.%s: invalid duration %q", s.name, key, v)
	}
	return d, nil
}

// IsUnlimited reports whether key is absent or spelled as an explicit "no limit".
func (s *Site) IsUnlimited(key string) bool {
	v, ok := s.raw(key)
	if !ok {
		return true
	}
	switch strings.ToLower(v) {
	case "", "none", "unlimited", "no", "off":
		return true
	}
	return false
}

// Strings splits a list option given either as a sequence or a comma separated string.
func (s *Site) Strings(key string) []string {
	v, ok := s.Lookup(key)
	if !ok {
		return nil
	}
	var parts []string
	switch x := v.(type) {
	case []string:
		parts = x
	case []any:
		for _, p := range x {
			parts = append(parts, fmt.Sprint(p))
		}
	default:
		parts = strings.Split(fmt.Sprint(x), ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
