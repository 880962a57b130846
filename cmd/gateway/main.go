package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tgstream/gateway/internal/config"
	"github.com/tgstream/gateway/internal/gatewayhttp"
	"github.com/tgstream/gateway/internal/idcodec"
	"github.com/tgstream/gateway/internal/logging"
	"github.com/tgstream/gateway/internal/mtproto"
	"github.com/tgstream/gateway/internal/quota"
	"github.com/tgstream/gateway/internal/registry"
	"github.com/tgstream/gateway/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "show version")
	dev := flag.Bool("dev", false, "use human-readable development logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tgstream-gateway %s\n", version.Version)
		return
	}

	logger, err := logging.New(*dev)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	upstream := mtproto.NewGotdUpstream(cfg.Clients[0].HomeDC)

	pool, err := mtproto.NewSessionPool(ctx, cfg.Clients, upstream, logger)
	if err != nil {
		logger.Fatal("start session pool", zap.Error(err))
	}
	defer pool.Close()

	cache := mtproto.NewFileCache()
	defer cache.Close()

	fetcher := mtproto.NewFetcher(pool, upstream)
	codec := idcodec.New(cfg.IDSecret)
	reg := registry.New()

	store, err := quota.NewFileStore(cfg.QuotaStorePath)
	if err != nil {
		logger.Fatal("open quota store", zap.Error(err))
	}
	tracker := quota.NewTracker(store, reg, logger)

	srv := gatewayhttp.NewServer(cfg, logger, pool, cache, upstream, fetcher, codec, reg, store, tracker)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("gateway starting", zap.Int("port", cfg.Port))
	if err := srv.Start(); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}
