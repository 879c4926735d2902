package main

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"syscall"
	"time"

	serial "github.com/tarm/goserial"
	"go.uber.org/zap"

	"github.com/chongyong/aquaview/internal/mqttclient"
	"github.com/chongyong/aquaview/services/gateway/config"
	"github.com/chongyong/aquaview/services/gateway/device"
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

	port, err := serial.OpenPort(&serial.Config{Name: cfg.SerialPort, Baud: cfg.BaudRate})
	if err != nil {
		sugar.Fatalw("serial open failed", "port", cfg.SerialPort, "error", err)
	}
	defer port.Close()
	sugar.Infow("serial connected", "port", cfg.SerialPort, "baud", cfg.BaudRate)

	client := mqttclient.New(sugar, mqttclient.Options{
		Server:   cfg.BrokerAddr,
		ClientID: cfg.ClientID,
	})
	client.Start()
	defer client.Close()

	acc := &device.Accumulator{}
	go func() {
		if err := device.ReadLines(ctx, port, acc, sugar); err != nil && ctx.Err() == nil {
			sugar.Errorw("serial read failed", "error", err)
			cancel()
		}
	}()

	sugar.Infow("gateway publishing",
		"broker", cfg.BrokerAddr, "topic", cfg.Topic, "interval", cfg.PublishInterval)

	ticker := time.NewTicker(cfg.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			payload, ok := acc.Flush(now, cfg.Location, cfg.SensorType)
			if !ok {
				sugar.Debugw("no sensor data accumulated yet")
				continue
			}

			data, err := json.Marshal(payload)
			if err != nil {
				sugar.Errorw("could not marshal payload", "error", err)
				continue
			}

			pubCtx, pubCancel := context.WithTimeout(ctx, 5*time.Second)
			if err := client.Publish(pubCtx, cfg.Topic, data); err != nil {
				sugar.Warnw("publish failed", "error", err)
			}
			pubCancel()
		}
	}
}
