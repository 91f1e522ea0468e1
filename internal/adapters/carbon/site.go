package carbon

import (
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/config"
	"github.com/vshulcz/wxrelay/internal/domain"
)

const (
	DefaultPrefix = "weewx"
	DefaultPort   = 2003
)

// RequiredOptions must be present in the graphite section.
var RequiredOptions = []string{"host", "port"}

// SiteDefaults are applied to the graphite section before it is parsed.
func SiteDefaults() map[string]any {
	return map[string]any{
		"prefix":     DefaultPrefix,
		"connection": string(ModePersistent),
	}
}

// FromSite builds a Sender from a graphite section. The port is not validated here;
// a bad value surfaces as a dial error.
func FromSite(site *config.Site, log *zap.Logger) (*Sender, error) {
	mode, err := ParseMode(site.String("connection", ""))
	if err != nil {
		return nil, err
	}
	fields := domain.DefaultFields()
	if names := site.Strings("fields"); len(names) > 0 {
		fields = domain.NewFieldSet(names...)
	}
	addr := net.JoinHostPort(site.String("host", "localhost"), site.String("port", strconv.Itoa(DefaultPort)))
	return New(addr,
		WithPrefix(site.String("prefix", DefaultPrefix)),
		WithFields(fields),
		WithMode(mode),
		WithLogger(log),
	), nil
}
