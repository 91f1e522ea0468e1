package httpjson

import (
	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/config"
)

// RequiredOptions must be present in the upstream section.
var RequiredOptions = []string{"url"}

// FromSite builds a Client from an upstream section; key is optional.
func FromSite(site *config.Site, log *zap.Logger) (*Client, error) {
	return New(site.String("url", ""),
		WithKey(site.String("key", "")),
		WithLogger(log),
	)
}
