package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vshulcz/wxrelay/internal/adapters/archive/memory"
	"github.com/vshulcz/wxrelay/internal/adapters/archive/postgres"
	auditfile "github.com/vshulcz/wxrelay/internal/adapters/audit/file"
	remoteaudit "github.com/vshulcz/wxrelay/internal/adapters/audit/remote"
	"github.com/vshulcz/wxrelay/internal/adapters/carbon"
	"github.com/vshulcz/wxrelay/internal/adapters/idokep"
	"github.com/vshulcz/wxrelay/internal/adapters/persistence/file"
	"github.com/vshulcz/wxrelay/internal/adapters/publisher/httpjson"
	"github.com/vshulcz/wxrelay/internal/config"
	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/misc"
	"github.com/vshulcz/wxrelay/internal/ports"
	"github.com/vshulcz/wxrelay/internal/services/host"
	"github.com/vshulcz/wxrelay/internal/services/relay"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// buildArchive returns the Postgres archive when a DSN is configured and reachable,
// otherwise the in-memory one. The returned closer releases the database handle.
func buildArchive(ctx context.Context, cfg config.RelayConfig, logger *zap.Logger) (ports.Archive, func() error) {
	if cfg.DSN != "" {
		db, err := sql.Open("postgres", cfg.DSN)
		if err == nil {
			op := func(int) error {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
				return postgres.Migrate(db)
			}
			if err = misc.Retry(ctx, misc.DefaultBackoff, postgres.IsRetryable, op); err == nil {
				logger.Info("db connected & migrated")
				return postgres.New(db), db.Close
			}
			_ = db.Close()
		}
		logger.Warn("postgres init failed, falling back to memory", zap.Error(err))
	}
	return memory.New(memory.DefaultRetention), func() error { return nil }
}

// sinkFactories maps every uploader section to the sink that serves it.
func sinkFactories(userAgent string) map[string]relay.SinkFactory {
	return map[string]relay.SinkFactory{
		"graphite": {
			Required: carbon.RequiredOptions,
			Defaults: carbon.SiteDefaults(),
			New: func(site *config.Site, log *zap.Logger) (ports.Sink, error) {
				s, err := carbon.FromSite(site, log)
				if err != nil {
					return nil, err
				}
				return s, nil
			},
		},
		"idokep": {
			Required: idokep.RequiredOptions,
			Defaults: idokep.SiteDefaults(),
			New: func(site *config.Site, log *zap.Logger) (ports.Sink, error) {
				c, err := idokep.FromSite(site, userAgent, log)
				if err != nil {
					return nil, err
				}
				return c, nil
			},
		},
		"upstream": {
			Required: httpjson.RequiredOptions,
			New: func(site *config.Site, log *zap.Logger) (ports.Sink, error) {
				c, err := httpjson.FromSite(site, log)
				if err != nil {
					return nil, err
				}
				return c, nil
			},
		},
	}
}

// attachAudit subscribes the configured audit sinks to svc.
func attachAudit(cfg config.RelayConfig, svc *host.Service) (func() error, error) {
	closeFn := func() error { return nil }
	if cfg.AuditFile != "" {
		w := auditfile.New(cfg.AuditFile)
		svc.Audit().Attach(w)
		closeFn = w.Close
	}
	if cfg.AuditURL != "" {
		c, err := remoteaudit.New(cfg.AuditURL, remoteaudit.WithKey(cfg.Key))
		if err != nil {
			return nil, err
		}
		svc.Audit().Attach(c)
	}
	return closeFn, nil
}

// snapshotter persists the in-memory archive between restarts.
type snapshotter struct {
	mem *memory.Archive
	p   *file.Persister
	log *zap.Logger
}

// newSnapshotter restores the archive when asked to and, for a zero interval, saves after
// every record. It returns nil unless archive is in memory and a snapshot file is configured.
func newSnapshotter(ctx context.Context, cfg config.RelayConfig, archive ports.Archive, svc *host.Service, logger *zap.Logger) *snapshotter {
	mem, ok := archive.(*memory.Archive)
	if !ok || cfg.FileStorage == "" {
		return nil
	}
	s := &snapshotter{mem: mem, p: file.New(cfg.FileStorage), log: logger}
	if cfg.Restore {
		n, err := s.p.Restore(ctx, mem)
		if err != nil {
			logger.Warn("restore failed", zap.Error(err))
		} else {
			logger.Info("restore ok", zap.String("file", cfg.FileStorage), zap.Int("records", n))
		}
	}
	if cfg.StoreInterval == 0 {
		svc.Events().Attach(s)
	}
	return s
}

// Notify saves synchronously after each published record.
func (s *snapshotter) Notify(ctx context.Context, _ domain.Record) error {
	return s.save(ctx)
}

func (s *snapshotter) save(ctx context.Context) error {
	if err := s.p.Save(ctx, s.mem.Records()); err != nil {
		return fmt.Errorf("snapshot %s: %w", s.p.Path(), err)
	}
	return nil
}

// loop saves every interval until ctx is done.
func (s *snapshotter) loop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.save(ctx); err != nil {
				s.log.Warn("periodic save failed", zap.Error(err))
			}
		}
	}
}
