// Package main provides the governance control unit server entry
// point: the governance-first /run gate, review and override
// endpoints, and the run status store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/novapact/gcu/pkg/config"
	"github.com/novapact/gcu/pkg/governance"
	"github.com/novapact/gcu/pkg/identity"
	"github.com/novapact/gcu/pkg/server"
)

func main() {
	var (
		configFile string
		listenAddr string
		authMode   string
	)

	flag.StringVar(&configFile, "config", "", "Path to YAML config file (optional; GCU_* env vars apply either way)")
	flag.StringVar(&listenAddr, "listen", "", "Address to listen on (overrides config)")
	flag.StringVar(&authMode, "auth-mode", os.Getenv("GCU_AUTH_MODE"), "Auth mode (jwt or body)")
	flag.Parse()

	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configFile, logger)
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}

	logger.Info("starting gcu server",
		"listen", cfg.Listen,
		"capability", cfg.CapabilityName,
		"threshold", cfg.ConfidenceThreshold,
		"manifest", cfg.ManifestPath,
		"db_type", cfg.DBType,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	metrics := server.NewMetrics()

	store, err := setupStore(cfg)
	if err != nil {
		metrics.SetDBInitSuccess(false)
		glog.Fatalf("Failed to initialize run store: %v", err)
	}
	metrics.SetDBInitSuccess(true)

	manager := governance.NewManager(store,
		governance.WithLogger(logger),
		governance.WithPreapprovedCreate(cfg.PreapprovedCreate))
	journal := governance.NewJournal(cfg.OutputsDir)
	retention := governance.NewRetentionWorker(journal, cfg.JournalRetentionDays, logger)
	go retention.Run(ctx)

	killSwitch := config.NewKillSwitch(cfg, logger)
	go func() {
		if err := killSwitch.Watch(ctx); err != nil {
			logger.Error("kill-switch watcher stopped", "error", err)
		}
	}()

	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithKillSwitch(killSwitch),
	}
	switch authMode {
	case "jwt":
		extractor, err := identity.NewExtractor(identity.ExtractorConfig{
			ActorClaim:    envOrDefault("GCU_JWT_ACTOR_CLAIM", "sub"),
			RoleClaim:     envOrDefault("GCU_JWT_ROLE_CLAIM", "role"),
			PublicKeyPath: os.Getenv("GCU_JWT_PUBLIC_KEY_PATH"),
			Issuer:        os.Getenv("GCU_JWT_ISSUER"),
			Audience:      os.Getenv("GCU_JWT_AUDIENCE"),
			Logger:        logger,
		})
		if err != nil {
			glog.Fatalf("Failed to create identity extractor: %v", err)
		}
		serverOpts = append(serverOpts, server.WithIdentityExtractor(extractor))
		logger.Info("using JWT identity",
			"hasPublicKey", os.Getenv("GCU_JWT_PUBLIC_KEY_PATH") != "")
	case "body", "":
		if authMode == "" {
			logger.Info("using body-supplied identity (development mode)")
		}
	default:
		glog.Fatalf("Unknown auth mode: %q (expected jwt or body)", authMode)
	}

	s := server.New(cfg, manager, journal, serverOpts...)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Router(),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("gcu server ready", "listen", cfg.Listen)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("gcu server stopped")
}

func setupStore(cfg *config.Config) (governance.RunStore, error) {
	var dialector gorm.Dialector
	switch cfg.DBType {
	case "sqlite":
		dialector = sqlite.Open(cfg.DBDSN)
	case "postgres":
		dialector = postgres.Open(cfg.DBDSN)
	case "mysql":
		dialector = mysql.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported db_type %q", cfg.DBType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBType, err)
	}

	store := governance.NewSQLRunStore(db)
	if err := store.AutoMigrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
