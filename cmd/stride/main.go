package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/stride/internal/config"
	"github.com/claude/stride/internal/engine"
	"github.com/claude/stride/internal/location"
	"github.com/claude/stride/internal/server"
	"github.com/claude/stride/internal/speech"
	"github.com/claude/stride/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("Stride starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Open store. SQLite creates its schema inline; Postgres runs the
	// migrations directory first.
	ctx := context.Background()
	var store storage.Store
	switch cfg.Database.Driver {
	case "postgres":
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}
		store, err = storage.OpenPostgres(ctx, dsn)
	default:
		if *migrateOnly {
			log.Info("migrate-only: sqlite schema is created on open, exiting")
			return
		}
		store, err = storage.OpenSQLite(cfg.Database.Path)
	}
	if err != nil {
		log.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("store opened", "driver", cfg.Database.Driver)

	// Cue delivery: keep recent cues for polling and mirror them to the log.
	feed := speech.NewFeed(50)
	announcer := speech.Multi(feed, speech.LogAnnouncer{Log: log})

	tracking := cfg.Tracking
	tracker := engine.New(store, announcer, func() engine.Config {
		return engine.Config{
			Zones:      tracking.Zones(),
			Cues:       tracking.AudioCues,
			UnitSystem: tracking.Units(),
		}
	}, log)

	// Resume an interrupted session if a snapshot is present.
	snap, err := store.LoadActiveSnapshot(ctx)
	if err != nil {
		log.Warn("snapshot load failed", "error", err)
	}
	if snap != nil {
		tracker.Restore(snap)
		log.Info("restored interrupted run", "type", snap.Type, "elapsed", snap.ElapsedSeconds, "distance", snap.Distance)
	}

	// Fix stream from the ingest endpoint into the tracker.
	source := location.NewPushSource()
	sub, err := source.Subscribe(tracker.HandleFix)
	if err != nil {
		log.Error("location subscribe failed", "error", err)
		os.Exit(1)
	}

	// 1 Hz clock driving the timer, staleness checks, and cue schedule.
	tickerDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				tracker.Tick(now)
			case <-tickerDone:
				return
			}
		}
	}()

	srv := server.New(store, tracker, source, feed, cfg.Tracking, cfg.Auth.APIKey, log)

	// Start server — tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	close(tickerDone)
	sub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
