package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/chongyong/aquaview/internal/hub"
	"github.com/chongyong/aquaview/internal/mqttclient"
	"github.com/chongyong/aquaview/services/bridge/config"
	httpserver "github.com/chongyong/aquaview/services/bridge/http"
	"github.com/chongyong/aquaview/services/bridge/monitor"
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

	h := hub.New(sugar)
	defer h.Close()

	mon := monitor.New(sugar, h, cfg.HistoryLimit)

	client := mqttclient.New(sugar, mqttclient.Options{
		Server:     cfg.BrokerAddr,
		ClientID:   cfg.ClientID,
		Topics:     []string{cfg.Topic},
		RetryDelay: cfg.RetryDelay,
		OnMessage:  mon.HandleMessage,
		OnConnect:  func() { mon.SetBrokerConnected(true) },
		OnDisconnect: func(error) {
			mon.SetBrokerConnected(false)
		},
	})
	client.Start()
	defer client.Close()

	srv := httpserver.New(cfg, mon, h, sugar)
	sugar.Infow("bridge listening", "addr", cfg.ListenAddr(), "broker", cfg.BrokerAddr, "topic", cfg.Topic)

	if err := srv.Run(ctx); err != nil {
		sugar.Fatalw("server error", "error", err)
	}
}
