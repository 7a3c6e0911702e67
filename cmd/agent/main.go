package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"doorbell-signal/internal/agent"
	"doorbell-signal/internal/config"
	"doorbell-signal/internal/transport"
	"doorbell-signal/pkg/logger"
	"doorbell-signal/pkg/utils"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "agent")
	slog.SetDefault(log)

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	bus, err := transport.NewRedisBus(rdb, log)
	if err != nil {
		log.Error("redis bus init failed", "err", err)
		os.Exit(1)
	}

	notifier, err := agent.NewMQTTNotifier(agent.MQTTNotifierOptions{
		Broker:   cfg.MQTT.BrokerURL,
		ClientID: cfg.MQTT.ClientID + "-agent",
		Topic:    cfg.MQTT.PanelTopic,
		QoS:      byte(cfg.MQTT.QoS),
	})
	if err != nil {
		log.Error("panel notifier init failed", "err", err)
		os.Exit(1)
	}
	defer notifier.Disconnect()

	pushes, err := bus.SubscribePush(rootCtx)
	if err != nil {
		log.Error("push subscription failed", "err", err)
		os.Exit(1)
	}
	interactions, err := notifier.Interactions(rootCtx)
	if err != nil {
		log.Error("interaction subscription failed", "err", err)
		os.Exit(1)
	}
	controls, err := bus.SubscribeControl(rootCtx)
	if err != nil {
		log.Error("control subscription failed", "err", err)
		os.Exit(1)
	}

	a := agent.New(agent.Options{
		Notifier: notifier,
		Broker:   bus,
		Logger:   log,
		Version:  version,
	})

	log.Info("panel notifier connected", "topic", cfg.MQTT.PanelTopic)
	if err := a.Run(rootCtx, pushes, interactions, controls); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("agent stopped", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
