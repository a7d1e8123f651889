package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/calloutstack/agent/internal/api"
	"github.com/obsidianstack/calloutstack/agent/internal/config"
	"github.com/obsidianstack/calloutstack/agent/internal/detector"
)

// scanResult is the document printed by `calloutd scan`.
type scanResult struct {
	Callouts    []api.CalloutResponse      `json:"callouts"`
	Detected    []detector.DetectedCallout `json:"detected"`
	Warnings    []detector.Warning         `json:"warnings"`
	FetchMethod string                     `json:"fetch_method"`
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one stylesheet check and print the callouts as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			detectedOnly, _ := cmd.Flags().GetBool("detected")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			det := build(cfg)
			defer det.Close()

			det.Check(cmd.Context())

			snap := api.BuildSnapshot(det)
			res := scanResult{
				Callouts:    snap.Callouts,
				Detected:    snap.Detected,
				Warnings:    det.Warnings(),
				FetchMethod: det.Watcher().DescribeFetchMethod(),
			}
			if res.Warnings == nil {
				res.Warnings = []detector.Warning{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if detectedOnly {
				return enc.Encode(res.Detected)
			}
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Bool("detected", false, "print only callouts the application does not ship with")
	return cmd
}
