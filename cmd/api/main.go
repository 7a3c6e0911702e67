package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doorbell-signal/internal/activity"
	"doorbell-signal/internal/auth"
	"doorbell-signal/internal/calls"
	"doorbell-signal/internal/config"
	"doorbell-signal/internal/dispatch"
	"doorbell-signal/internal/httpapi"
	"doorbell-signal/internal/router"
	"doorbell-signal/internal/subscription"
	"doorbell-signal/internal/tones"
	"doorbell-signal/internal/transport"
	"doorbell-signal/pkg/logger"
	"doorbell-signal/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "api")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

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

	subs := subscription.NewService(subscription.NewPostgresRepo(db))
	act := activity.NewService(activity.NewPostgresRepo(db))

	disp := dispatch.New(dispatch.Options{
		Subscribers: subs,
		Publisher:   bus,
		Activity:    act,
		Logger:      log,
	})

	dedupe, err := utils.NewRedisDeduper(rdb, 2*time.Minute)
	if err != nil {
		log.Error("deduper init failed", "err", err)
		os.Exit(1)
	}

	ringFeed, err := dispatch.NewMQTTSource(dispatch.MQTTSourceOptions{
		Broker:      cfg.MQTT.BrokerURL,
		ClientID:    cfg.MQTT.ClientID + "-ring",
		TopicFilter: cfg.MQTT.RingTopicFilter,
		QoS:         byte(cfg.MQTT.QoS),
		Dispatcher:  disp,
		Dedupe:      dedupe,
		Logger:      log,
	})
	if err != nil {
		log.Error("mqtt ring feed init failed", "err", err)
		os.Exit(1)
	}
	defer ringFeed.Close()
	if err := ringFeed.Start(rootCtx); err != nil {
		log.Error("mqtt ring feed subscribe failed", "err", err)
		os.Exit(1)
	}

	audioSink, err := tones.NewMQTTSink(tones.MQTTSinkOptions{
		Broker:   cfg.MQTT.BrokerURL,
		ClientID: cfg.MQTT.ClientID + "-tones",
		Topic:    cfg.MQTT.PanelTopic + "/audio",
		QoS:      byte(cfg.MQTT.QoS),
	})
	if err != nil {
		log.Error("panel audio sink init failed", "err", err)
		os.Exit(1)
	}
	defer audioSink.Disconnect()

	rt := router.New(router.Options{
		NewSession: func() *calls.Session {
			return calls.NewSession(calls.Options{
				Player:           tones.NewGenerator(tones.Options{Sink: audioSink, Logger: log}),
				Logger:           log,
				RingbackInterval: cfg.Call.RingbackInterval,
				TickInterval:     cfg.Call.TickInterval,
			})
		},
		Surface: func(propertyName string) {
			log.Info("surfacing call context", "property", propertyName)
		},
		Control: bus,
		Logger:  log,
	})

	routes, err := bus.SubscribeRoutes(rootCtx)
	if err != nil {
		log.Error("route subscription failed", "err", err)
		os.Exit(1)
	}
	go func() {
		if err := rt.Run(rootCtx, routes); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("router stopped", "err", err)
		}
	}()

	// A routing message may have been parked while no consumer was running.
	if msg, ok, err := bus.TakePendingRoute(rootCtx); err != nil {
		log.Warn("pending route check failed", "err", err)
	} else if ok {
		rt.HandleRoute(msg)
	}

	h := httpapi.Handlers{
		Auth:       authManager,
		Subs:       subs,
		Activity:   act,
		Router:     rt,
		Dispatcher: disp,
		Accounts:   httpapi.EnvAccounts(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
