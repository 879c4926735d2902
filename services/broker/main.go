package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"

	"github.com/chongyong/aquaview/services/broker/config"
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

	server := mochi.New(nil)
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		sugar.Fatalw("broker hook error", "error", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		Address: cfg.ListenAddr(),
	})
	if err := server.AddListener(tcp); err != nil {
		sugar.Fatalw("broker listener error", "error", err)
	}

	go func() {
		if err := server.Serve(); err != nil {
			sugar.Fatalw("broker serve error", "error", err)
		}
	}()
	sugar.Infow("broker listening", "addr", cfg.ListenAddr())

	<-ctx.Done()
	sugar.Infow("broker shutting down")
	_ = server.Close()
}
