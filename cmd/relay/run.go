package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vshulcz/wxrelay/internal/adapters/collector/relaystats"
	"github.com/vshulcz/wxrelay/internal/adapters/collector/runtime"
	"github.com/vshulcz/wxrelay/internal/adapters/http/ginserver"
	"github.com/vshulcz/wxrelay/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/wxrelay/internal/config"
	archivesvc "github.com/vshulcz/wxrelay/internal/services/archive"
	"github.com/vshulcz/wxrelay/internal/services/host"
	"github.com/vshulcz/wxrelay/internal/services/relay"
	"github.com/vshulcz/wxrelay/pkg/util"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 30 * time.Second
)

// serveFunc runs srv until it is shut down. nil means srv.ListenAndServe.
type serveFunc func(srv *http.Server) error

func run(ctx context.Context, cfg config.RelayConfig, info util.BuildInfo, logger *zap.Logger, serve serveFunc) (retErr error) {
	if serve == nil {
		serve = func(srv *http.Server) error { return srv.ListenAndServe() }
	}

	archive, closeArchive := buildArchive(ctx, cfg, logger)
	defer func() {
		if err := closeArchive(); err != nil && retErr == nil {
			retErr = fmt.Errorf("close archive: %w", err)
		}
	}()

	svc := host.New(archive, logger.Named("host"))
	closeAudit, err := attachAudit(cfg, svc)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeAudit(); err != nil {
			logger.Warn("audit close failed", zap.Error(err))
		}
	}()
	snap := newSnapshotter(ctx, cfg, archive, svc, logger)
	augmenter := archivesvc.New(archive, time.Local, logger.Named("archive"))

	// Workers outlive the signal so queued records can drain after the listener stops.
	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()

	factories := sinkFactories(info.UserAgent("wxrelay"))
	for _, name := range config.SiteNames {
		b := relay.NewBinder(workerCtx, name, cfg.Sites[name], factories[name], svc.Events(),
			relay.WithLogger(logger),
			relay.WithAugmenter(augmenter),
		)
		svc.Register(b)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(relaystats.New(svc.Sites))
	if cfg.StatsInterval > 0 {
		self := runtime.New()
		if err := self.Start(ctx, cfg.StatsInterval); err != nil {
			return err
		}
		defer self.Stop()
		reg.MustRegister(self)
	}

	h := ginserver.NewHandler(svc, reg, logger)
	r := ginserver.NewRouter(h,
		middlewares.ZapLogger(logger),
		middlewares.GzipRequest(),
		middlewares.GzipResponse(),
		middlewares.HashSHA256(cfg.Key, true),
	)
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("relay listening", zap.String("addr", cfg.Address), zap.String("config", cfg.ConfigFile))
		if err := serve(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	if snap != nil && cfg.StoreInterval > 0 {
		g.Go(func() error {
			snap.loop(gctx, cfg.StoreInterval)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	err = g.Wait()

	logger.Info("draining uploaders")
	if cerr := drain(svc, cancelWorkers, drainTimeout); cerr != nil {
		logger.Warn("uploader close failed", zap.Error(cerr))
	}
	if snap != nil {
		if serr := snap.save(context.WithoutCancel(ctx)); serr != nil {
			logger.Warn("final save failed", zap.Error(serr))
		}
	}
	return err
}

// drain closes every binder, abandoning pending uploads once timeout passes.
func drain(svc *host.Service, cancel context.CancelFunc, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- svc.Close() }()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		cancel()
		return <-done
	}
}
