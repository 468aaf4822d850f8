package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file if present
	"github.com/rxtech-lab/token-atlas/internal/api"
	"github.com/rxtech-lab/token-atlas/internal/config"
	"github.com/rxtech-lab/token-atlas/internal/services"
)

// Build information (set via ldflags)
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func main() {
	var showVersion = flag.Bool("version", false, "Show version information")
	var configDir = flag.String("config", "", "Directory containing config.yaml")
	flag.Parse()

	if *showVersion {
		log.Printf("Token Atlas Server\n")
		log.Printf("Version: %s\n", Version)
		log.Printf("Commit: %s\n", CommitHash)
		log.Printf("Built: %s\n", BuildTime)
		return
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	chainService := services.NewChainService(db.GetDB())
	tokenService := services.NewTokenService(db.GetDB())
	familyService := services.NewFamilyService(db.GetDB(), tokenService, chainService)
	queryService := services.NewQueryService(db.GetDB())
	graphService := services.NewGraphService()

	reconciler := services.NewReconcileService(familyService, cfg.ReconcileSchedule, cfg.StoreTimeout)
	if err := reconciler.Start(); err != nil {
		log.Fatal("Failed to start reconciler:", err)
	}
	defer reconciler.Stop()

	apiServer := api.NewAPIServer(chainService, tokenService, familyService, queryService, graphService, api.ServerConfig{
		JWTSecret:    cfg.JWTSecret,
		StoreTimeout: cfg.StoreTimeout,
	})

	port, err := apiServer.Start(cfg.Port)
	if err != nil {
		log.Fatal("Failed to start API server:", err)
	}
	slog.Info("token atlas server started", "port", port, "driver", cfg.DatabaseDriver)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")
	if err := apiServer.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v\n", err)
	}
}

func openDatabase(cfg *config.Config) (services.DBService, error) {
	if cfg.DatabaseDriver == "postgres" {
		return services.NewPostgresDBService(cfg.DatabaseDSN)
	}
	return services.NewSqliteDBService(cfg.DatabasePath)
}
