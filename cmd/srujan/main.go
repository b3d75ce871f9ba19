// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SanketKarpe/srujan/pkg/api"
	"github.com/SanketKarpe/srujan/pkg/config"
	"github.com/SanketKarpe/srujan/pkg/enforce"
	"github.com/SanketKarpe/srujan/pkg/engine"
	"github.com/SanketKarpe/srujan/pkg/storage"
	"github.com/SanketKarpe/srujan/pkg/trust"
)

var (
	configPath string
	dbPath     string
	logLevel   string
	dryRun     bool
	enableAPI  bool
	apiHost    string
	apiPort    int
)

var rootCmd = &cobra.Command{
	Use:   "srujan",
	Short: "Home network policy decision and enforcement engine",
	Long:  `A policy engine for home networks that evaluates device connections against prioritized rules, scores device trustworthiness, and enforces decisions through iptables`,
	Run:   runEngine,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to yaml config file")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log enforcement actions without executing them")
	rootCmd.Flags().BoolVarP(&enableAPI, "enable-api", "a", true, "Enable REST API server")
	rootCmd.Flags().StringVar(&apiHost, "api-host", "", "API server host (overrides config)")
	rootCmd.Flags().IntVar(&apiPort, "api-port", 0, "API server port (overrides config)")
}

func runEngine(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the config file
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dryRun {
		cfg.DryRun = true
	}
	if apiHost != "" {
		cfg.API.Host = apiHost
	}
	if apiPort != 0 {
		cfg.API.Port = apiPort
	}
	if !enableAPI {
		cfg.API.Enabled = false
	}

	// Setup logging
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	log.Infof("Starting srujan policy engine (db=%s, dry_run=%v)", cfg.DBPath, cfg.DryRun)

	// Open the policy store
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open policy store: %v", err)
	}
	defer store.Close()

	log.Info("✓ Policy store initialized")

	// Trust scorer over the in-memory signal source; device signals
	// are fed in via the API or by the discovery integration
	scorer := trust.NewScorer(trust.NewStaticSource())

	// iptables enforcer
	enforcer := enforce.NewIPTables()
	if cfg.EnforceTimeout > 0 {
		enforcer.Timeout = cfg.EnforceTimeout
	}

	// Policy engine
	eng := engine.New(store, scorer, enforcer, engine.NewStaticResolver(), cfg.DryRun)
	if err := eng.LoadPolicies(); err != nil {
		log.Fatalf("Failed to load policies: %v", err)
	}

	log.Info("✓ Policy engine initialized")

	// Start API server if enabled
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.NewAPIServer(&cfg.API, store, eng, scorer, cfg.DryRun)
		if err != nil {
			log.Fatalf("Failed to create API server: %v", err)
		}

		if err := apiServer.Start(); err != nil {
			log.Fatalf("Failed to start API server: %v", err)
		}

		log.Infof("✓ API server started on http://%s:%d", cfg.API.Host, cfg.API.Port)
	}

	// Wait for interrupt signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	log.Info("✓ Engine running. Press Ctrl+C to exit")

	<-sig
	log.Info("Shutting down...")

	// Stop API server if running
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			log.Errorf("Error stopping API server: %v", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
