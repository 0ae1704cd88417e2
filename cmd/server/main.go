package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crypto-assistant/internal/api"
	"crypto-assistant/internal/backend"
	"crypto-assistant/internal/config"
	"crypto-assistant/internal/market"
	"crypto-assistant/internal/narrator"
	"crypto-assistant/internal/observability"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "configs/app.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	timeout := time.Duration(cfg.Backend.TimeoutMs) * time.Millisecond
	urls := cfg.Backend.URLs()
	clients := make([]market.MarketProvider, 0, len(urls))
	for _, u := range urls {
		clients = append(clients, backend.New(u,
			backend.WithTimeout(timeout),
			backend.WithMaxRetries(cfg.Backend.MaxRetries),
		))
	}
	primary := clients[0].(*backend.Client)
	logger.Info("backend configured",
		zap.String("primary", primary.BaseURL()),
		zap.Int("fallbacks", len(clients)-1),
	)

	mktSvc := market.NewService(
		market.NewMultiProvider(clients...),
		time.Duration(cfg.Markets.MinRequestIntervalMs)*time.Millisecond,
		logger.Named("market"),
	)

	narr := narrator.New(narrator.Config{
		Enabled:    cfg.Narrator.Enabled,
		Model:      cfg.Narrator.Model,
		APIKey:     cfg.Narrator.APIKey,
		BaseURL:    cfg.Narrator.BaseURL,
		ByAzure:    cfg.Narrator.ByAzure,
		APIVersion: cfg.Narrator.APIVersion,
		TimeoutMs:  cfg.Narrator.TimeoutMs,
	}, logger.Named("narrator"))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))

	api.RegisterRoutes(h, api.Deps{
		Backend:        primary,
		Markets:        mktSvc,
		MarketDefaults: market.Query{PerPage: cfg.Markets.PerPage, Sparkline: cfg.Markets.Sparkline},
		Narrator:       narr,
		Limiter:        api.NewTokenBucket(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
		Logger:         logger.Named("api"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return observability.Serve(gctx, cfg.Metrics.Addr, logger.Named("metrics"))
	})
	g.Go(func() error {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.Strings("backends", urls),
			zap.Bool("narrator", narr.Enabled()))
		return h.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
