package idokep

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/config"
)

// RequiredOptions must be present in the idokep section.
var RequiredOptions = []string{"username", "password"}

func SiteDefaults() map[string]any {
	return map[string]any{
		"server_url":     DefaultServerURL,
		"success_marker": DefaultSuccessMarker,
		"station_type":   DefaultStationType,
	}
}

// FromSite builds a Client from an idokep section.
func FromSite(site *config.Site, userAgent string, log *zap.Logger) (*Client, error) {
	loc := time.Local
	if tz := site.String("timezone", ""); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%s.timezone: %w", site.Name(), err)
		}
		loc = l
	}
	opts := []Option{
		WithSuccessMarker(site.String("success_marker", DefaultSuccessMarker)),
		WithStationType(site.String("station_type", DefaultStationType)),
		WithLocation(loc),
		WithLogger(log),
	}
	if userAgent != "" {
		opts = append(opts, WithUserAgent(userAgent))
	}
	return New(
		site.String("server_url", DefaultServerURL),
		site.String("username", ""),
		site.String("password", ""),
		opts...,
	)
}
