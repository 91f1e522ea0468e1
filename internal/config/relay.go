package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vshulcz/wxrelay/internal/misc"
)

const (
	defaultListenAddr    = "localhost:8080"
	defaultLogLevel      = "info"
	defaultStatsInterval = 10
	defaultStoreInterval = 300
	defaultConfigName    = "wxrelay"
	envPrefix            = "WXRELAY"
)

// SiteNames lists the uploader sections the relay knows how to bind.
var SiteNames = []string{"graphite", "idokep", "upstream"}

// siteKeys are probed individually so WXRELAY_<SITE>_<KEY> works without a config file.
var siteKeys = []string{
	"host", "port", "prefix", "connection", "fields",
	"username", "password", "server_url", "success_marker", "station_type", "timezone",
	"url", "key",
	"skip_upload", "post_interval", "max_backlog", "stale",
	"log_success", "log_failure", "timeout", "max_tries", "retry_wait",
}

// RelayConfig holds process-level settings plus the raw uploader sections.
type RelayConfig struct {
	Sites         map[string]*Site
	Address       string
	AuditFile     string
	AuditURL      string
	ConfigFile    string
	DSN           string
	FileStorage   string
	Key           string
	LogLevel      string
	StatsInterval time.Duration
	StoreInterval time.Duration
	Restore       bool
	Version       bool
}

// ENV > CLI > defaults
func LoadRelayConfig(args []string, out io.Writer) (RelayConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(out)

	var addrOpt, cfgOpt, dsnOpt, keyOpt, levelOpt, auditFileOpt, auditURLOpt string
	var fileOpt string
	var statsOpt, storeOpt int
	var restoreOpt, versionOpt bool

	fs.StringVar(&addrOpt, "a", "", fmt.Sprintf("ingest listen address, default: %s", defaultListenAddr))
	fs.StringVar(&cfgOpt, "c", "", fmt.Sprintf("config file (yaml/toml/json), default: ./%s.yaml if present", defaultConfigName))
	fs.StringVar(&dsnOpt, "d", "", "DATABASE_DSN for the Postgres archive, default: in-memory archive")
	fs.StringVar(&keyOpt, "k", "", "secret key for HashSHA256 request signatures")
	fs.StringVar(&levelOpt, "l", "", fmt.Sprintf("log level, default: %s", defaultLogLevel))
	fs.IntVar(&statsOpt, "s", -1, fmt.Sprintf("self-stats sampling interval in seconds (0 - off), default: %d", defaultStatsInterval))
	fs.StringVar(&auditFileOpt, "audit-file", "", "append ingest audit events to this file")
	fs.StringVar(&auditURLOpt, "audit-url", "", "POST ingest audit events to this URL")
	fs.StringVar(&fileOpt, "f", "", "snapshot file for the in-memory archive (empty - off)")
	fs.IntVar(&storeOpt, "i", -1, fmt.Sprintf("archive snapshot interval in seconds (0 - after every record), default: %d", defaultStoreInterval))
	fs.BoolVar(&restoreOpt, "r", false, "restore the in-memory archive from the snapshot file on start")
	fs.BoolVar(&versionOpt, "version", false, "print build information and exit")

	if err := fs.Parse(args); err != nil {
		return RelayConfig{}, err
	}

	addr := FromEnvOrFlag("ADDRESS", addrOpt, defaultListenAddr)
	if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
		return RelayConfig{}, fmt.Errorf("invalid listen address: %q", addr)
	}

	stats, _ := FromEnvOrFlagDuration("STATS_INTERVAL", statsOpt, -1, defaultStatsInterval)
	if stats < 0 {
		return RelayConfig{}, fmt.Errorf("stats interval must be >= 0, got %v", stats)
	}

	store, _ := FromEnvOrFlagDuration("STORE_INTERVAL", storeOpt, -1, defaultStoreInterval)
	if store < 0 {
		return RelayConfig{}, fmt.Errorf("store interval must be >= 0, got %v", store)
	}

	cfgFile := FromEnvOrFlag("CONFIG", cfgOpt, "")
	sites, used, err := LoadSites(cfgFile)
	if err != nil {
		return RelayConfig{}, err
	}

	return RelayConfig{
		Sites:         sites,
		Address:       addr,
		AuditFile:     FromEnvOrFlag("AUDIT_FILE", auditFileOpt, ""),
		AuditURL:      FromEnvOrFlag("AUDIT_URL", auditURLOpt, ""),
		ConfigFile:    used,
		DSN:           FromEnvOrFlag("DATABASE_DSN", dsnOpt, ""),
		FileStorage:   FromEnvOrFlag("FILE_STORAGE_PATH", fileOpt, ""),
		Key:           FromEnvOrFlag("KEY", keyOpt, ""),
		LogLevel:      strings.ToLower(FromEnvOrFlag("LOG_LEVEL", levelOpt, defaultLogLevel)),
		StatsInterval: stats,
		StoreInterval: store,
		Restore:       FromEnvOrFlagBool("RESTORE", restoreOpt),
		Version:       versionOpt,
	}, nil
}

// LoadSites reads every known uploader section from path (or ./wxrelay.* when empty),
// overlaid with WXRELAY_<SITE>_<KEY> environment variables. Sections with no options are omitted.
// It returns the config file actually used, if any.
func LoadSites(path string) (map[string]*Site, string, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case path != "" && (errors.Is(err, os.ErrNotExist) || errors.As(err, &notFound)):
			return nil, "", fmt.Errorf("config file %q: %w", path, err)
		case errors.As(err, &notFound):
		default:
			return nil, "", fmt.Errorf("read config: %w", err)
		}
	}

	sites := make(map[string]*Site, len(SiteNames))
	for _, name := range SiteNames {
		opts := map[string]any{}
		for k, val := range v.GetStringMap(name) {
			opts[k] = val
		}
		for _, k := range siteKeys {
			if key := name + "." + k; v.IsSet(key) {
				opts[k] = v.Get(key)
			}
		}
		if len(opts) > 0 {
			sites[name] = NewSite(name, opts)
		}
	}
	return sites, v.ConfigFileUsed(), nil
}
