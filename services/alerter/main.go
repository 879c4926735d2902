package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chongyong/aquaview/internal/alert"
	"github.com/chongyong/aquaview/internal/mqttclient"
	"github.com/chongyong/aquaview/internal/quality"
	"github.com/chongyong/aquaview/internal/reading"
	"github.com/chongyong/aquaview/services/alerter/config"
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

	notifier := alert.New(
		&alert.ResendSender{
			APIKey: cfg.ResendAPIKey,
			From:   cfg.SenderEmail,
			To:     cfg.Recipients,
		},
		sugar,
		alert.Options{
			Cooldown: cfg.Cooldown,
			LogPath:  cfg.AlertLogPath,
		},
	)

	client := mqttclient.New(sugar, mqttclient.Options{
		Server:   cfg.BrokerAddr,
		ClientID: cfg.ClientID,
		Topics:   []string{cfg.Topic},
		OnMessage: func(topic string, payload []byte) {
			r, err := reading.NormalizeJSON(payload)
			if err != nil {
				sugar.Warnw("dropping malformed payload", "topic", topic, "error", err)
				return
			}

			assessment := quality.Analyze(r)
			sugar.Infow("reading assessed",
				"location", r.Location,
				"status", assessment.Status,
				"score", assessment.Score,
				"issues", len(assessment.Issues))

			sendCtx, sendCancel := context.WithTimeout(ctx, 15*time.Second)
			notifier.Evaluate(sendCtx, r, assessment)
			sendCancel()
		},
	})
	client.Start()
	defer client.Close()

	sugar.Infow("alerter running",
		"broker", cfg.BrokerAddr, "topic", cfg.Topic, "cooldown", cfg.Cooldown)

	<-ctx.Done()
}
