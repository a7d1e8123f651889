package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/calloutstack/agent/internal/api"
	"github.com/obsidianstack/calloutstack/agent/internal/auth"
	"github.com/obsidianstack/calloutstack/agent/internal/config"
	"github.com/obsidianstack/calloutstack/agent/internal/detector"
	"github.com/obsidianstack/calloutstack/agent/internal/metrics"
	"github.com/obsidianstack/calloutstack/agent/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Watch the vault and serve the callout API",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	slog.Info("calloutd starting", "config", configPath, "version", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"broadcast_interval", cfg.Server.BroadcastInterval,
	)

	det := build(cfg)
	defer det.Close()

	// WebSocket hub, pushed to on every change and on a fixed interval.
	hub := ws.New(det, cfg.Server.BroadcastInterval)
	unsubscribe := det.Subscribe(hub.Notify)
	defer unsubscribe()

	stop, err := det.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch vault: %w", err)
	}
	defer stop()
	st := det.Stats()
	slog.Info("initial check complete", "callouts", st.Callouts, "detected", st.Detected, "fetch_method", det.Watcher().DescribeFetchMethod())

	key := cfg.Server.Auth.Key()
	if cfg.Server.Auth.Mode == "apikey" && key == "" {
		slog.Warn("auth mode is apikey but the key variable is empty; API is unauthenticated", "key_env", cfg.Server.Auth.KeyEnv)
	}
	requireKey := auth.APIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.Header, key)

	mux := http.NewServeMux()
	mux.Handle("/api/", requireKey(api.New(det)))
	mux.Handle("/ws/stream", requireKey(hub))
	mux.Handle("/metrics", metrics.Handler(det.Stats))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("calloutd shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		// Hot-reload covers custom callouts and detection toggles. Other
		// sections need a restart.
		err := config.Watch(gctx, configPath, func(updated *config.Config) {
			det.SetCustom(updated.Callouts.Custom)
			det.SetSettings(gctx, detector.SettingsFrom(updated.Detection))
			slog.Info("config hot-reloaded", "custom_callouts", len(updated.Callouts.Custom))
		})
		if err != nil && gctx.Err() == nil {
			slog.Error("config watcher stopped", "err", err)
		}
		return nil
	})

	return g.Wait()
}
