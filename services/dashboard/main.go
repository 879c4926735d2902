package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/chongyong/aquaview/internal/feed"
	"github.com/chongyong/aquaview/services/dashboard/config"
	httpserver "github.com/chongyong/aquaview/services/dashboard/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	controller := feed.New(
		&feed.WebsocketTransport{URL: cfg.BridgeWSURL},
		&feed.HTTPHistorySource{URL: cfg.HistoryURL},
		sugar,
		feed.Options{
			RetryDelay:   cfg.RetryDelay,
			HistoryLimit: cfg.HistoryLimit,
		},
	)
	controller.Start()
	defer controller.Close()

	srv := httpserver.New(cfg, controller)
	sugar.Infow("dashboard listening", "addr", cfg.ListenAddr(), "bridge", cfg.BridgeWSURL)

	if err := srv.Run(ctx); err != nil {
		sugar.Fatalw("server error", "error", err)
	}
}
