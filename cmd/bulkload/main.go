package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file if present
	"github.com/rxtech-lab/token-atlas/internal/config"
	"github.com/rxtech-lab/token-atlas/internal/services"
	"github.com/rxtech-lab/token-atlas/internal/utils"
)

// bulkload seeds the catalog from a JSON batch file using the same ingest
// contract as the HTTP API, but talking to the store directly.
func main() {
	var batchFile = flag.String("file", "seed.json", "Path to the JSON batch file")
	var configDir = flag.String("config", "", "Directory containing config.yaml")
	var timeout = flag.Duration("timeout", time.Minute, "Overall ingest timeout")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	data, err := os.ReadFile(*batchFile)
	if err != nil {
		log.Fatal("Failed to read batch file:", err)
	}

	var req services.IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.Fatal("Failed to parse batch file:", err)
	}

	// The engine trusts ingested addresses; flag suspect EVM ones up front so
	// typos are caught before they become identity keys.
	for _, token := range req.Tokens {
		if strings.HasPrefix(token.ContractAddress, "0x") && !utils.IsValidEthereumAddress(token.ContractAddress) {
			log.Printf("warning: %s on %s has a malformed EVM address %q", token.Symbol, token.Chain, token.ContractAddress)
		}
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	chainService := services.NewChainService(db.GetDB())
	tokenService := services.NewTokenService(db.GetDB())
	familyService := services.NewFamilyService(db.GetDB(), tokenService, chainService)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := familyService.Ingest(ctx, req)
	if err != nil {
		log.Fatal("Ingest failed:", err)
	}

	log.Printf("inserted %d, updated %d, %d families touched", result.Inserted, result.Updated, len(result.Families))
	for _, failure := range result.Failures {
		log.Printf("token %d (%s) failed: %s", failure.Index, failure.Symbol, failure.Error)
	}
}

func openDatabase(cfg *config.Config) (services.DBService, error) {
	if cfg.DatabaseDriver == "postgres" {
		return services.NewPostgresDBService(cfg.DatabaseDSN)
	}
	return services.NewSqliteDBService(cfg.DatabasePath)
}
