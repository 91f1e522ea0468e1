package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/config"
	"github.com/vshulcz/wxrelay/pkg/util"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	info := util.BuildInfo{Version: buildVersion, Date: buildDate, Commit: buildCommit}

	cfg, err := config.LoadRelayConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Version {
		info.Print(os.Stdout)
		return
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, info, logger, nil); err != nil {
		logger.Fatal("relay stopped", zap.Error(err))
	}
}
