package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/alerts"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/api"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/config"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/engine"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/feed"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/hub"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/store"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/tracker"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/ranch.yaml", "Path to ranch YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Record store ──────────────────────────────────────────────────────────
	st := store.New()
	st.Seed(cfg)
	slog.Info("record store seeded",
		"entities", len(cfg.Entities),
		"boundaries", len(cfg.Boundaries),
		"resources", len(cfg.Resources))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Broadcast hub ─────────────────────────────────────────────────────────
	h := hub.New(hub.Options{
		SendQueueSize: cfg.Hub.SendQueueSize,
		PingPeriod:    time.Duration(cfg.Hub.PingPeriodSeconds) * time.Second,
		MissedPings:   cfg.Hub.MissedPings,
	})

	// ── Alert manager ─────────────────────────────────────────────────────────
	am := alerts.NewManager(alerts.Options{
		MaxNotifications: cfg.Alerts.MaxNotifications,
		DefaultExpiry:    time.Duration(cfg.Alerts.DefaultExpirySeconds) * time.Second,
		ExpireViolations: cfg.Alerts.ExpireViolations,
	}, h)
	go am.Run(ctx)

	// ── Tracker + engine ──────────────────────────────────────────────────────
	tr := tracker.New(st.Boundaries())
	eng := engine.New(ctx, tr, st, am, h, cfg.Engine)
	eng.Warm()

	// ── Boundary hot-reload ───────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.RanchConfig) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		boundaries := store.BoundariesFromConfig(newCfg.Boundaries)
		st.ReplaceBoundaries(boundaries)
		tr.Reload(boundaries)
		slog.Info("boundary set hot-reloaded", "boundaries", len(boundaries), "active", tr.ActiveBoundaryCount())
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── Position feeds ────────────────────────────────────────────────────────
	if cfg.Feed.Simulator.Enabled {
		sim := feed.NewSimulator(st, cfg.Feed.Simulator, eng.Submit)
		go sim.Run(ctx)
	}
	if cfg.Feed.MQTT.Broker != "" {
		mq, err := feed.NewMQTTFeed(cfg.Feed.MQTT, eng.Submit)
		if err != nil {
			slog.Error("mqtt feed unavailable", "err", err)
			os.Exit(1)
		}
		defer mq.Close()
	}

	am.Notify(alerts.Params{
		Category:   alerts.CategorySystem,
		Title:      "Ranch tracking online",
		Message:    "Real-time herd tracking and geofence monitoring started",
		Priority:   alerts.PriorityNormal,
		AutoExpire: true,
	})

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(eng, st, am, h, loader)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	h.CloseAll()
	cancel() // stop feeds and the alert sweep
	eng.Shutdown()
	slog.Info("goodbye")
}
