package main

import (
	"log/slog"

	"github.com/obsidianstack/calloutstack/agent/internal/config"
	"github.com/obsidianstack/calloutstack/agent/internal/detector"
	"github.com/obsidianstack/calloutstack/agent/internal/vault"
	"github.com/obsidianstack/calloutstack/agent/internal/verify"
	"github.com/obsidianstack/calloutstack/agent/internal/watcher"
)

// build wires vault → watcher → detector from cfg.
func build(cfg *config.Config) *detector.Detector {
	v := vault.New(cfg.Vault.Path,
		vault.WithConfigDir(cfg.Vault.ConfigDir),
		vault.WithBuiltinStyles(cfg.Builtin.Styles...),
		vault.WithColorScheme(cfg.Verification.ColorScheme),
	)

	wopts := []watcher.Option{watcher.WithMinInterval(cfg.Detection.MinCheckInterval)}
	switch {
	case cfg.Builtin.URL != "":
		wopts = append(wopts, watcher.WithFetcher(watcher.NewHTTPFetcher(cfg.Builtin.URL, cfg.Builtin.Timeout)))
	case cfg.Builtin.File != "":
		wopts = append(wopts, watcher.WithFetcher(watcher.FileFetcher{Path: cfg.Builtin.File}))
	}
	w := watcher.New(v, wopts...)

	dopts := []detector.Option{
		detector.WithSettings(detector.SettingsFrom(cfg.Detection)),
		detector.WithCustom(cfg.Callouts.Custom),
	}
	if cfg.Verification.Enabled {
		dopts = append(dopts, detector.WithVerification(v.ColorScheme,
			verify.WithViewType(verify.ViewType(cfg.Verification.View))))
	}

	slog.Info("vault opened",
		"path", v.Root(),
		"config_dir", cfg.Vault.ConfigDir,
		"builtin_styles", len(cfg.Builtin.Styles),
		"verification", cfg.Verification.Enabled,
		"custom_callouts", len(cfg.Callouts.Custom),
	)
	return detector.New(w, dopts...)
}
