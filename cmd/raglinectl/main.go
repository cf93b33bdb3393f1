// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command raglinectl is the terminal client for the response engine.
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lanternworks/ragline/pkg/logging"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "raglinectl",
	Short: "Talk to a ragline response engine",
	Long: `raglinectl is the terminal client for the ragline response engine.

It streams chat turns over the raw wire protocol and runs offline
evaluation batches against the /v1/eval endpoint.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		envOr("RAGLINE_SERVER_URL", "http://localhost:12300"),
		"base URL of the response engine")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.Setup(logging.Config{
			Level:   logging.ParseLevel(os.Getenv("RAGLINE_LOG_LEVEL")),
			Service: "raglinectl",
		})
		slog.Debug("Client configured", "server", serverURL)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
