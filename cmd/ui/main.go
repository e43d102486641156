package main

import (
	"fmt"
	"net/http"
	"os"

	"cryptofolio-bot-go/internal/config"
	"cryptofolio-bot-go/internal/database"
	"cryptofolio-bot-go/internal/ledger"
	"cryptofolio-bot-go/internal/logger"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	opts, err := ledger.OptionsFromConfig(cfg.Ledger)
	if err != nil {
		log.Fatal("Invalid ledger configuration", zap.Error(err))
	}

	// Create a handler that reads through the ledger
	apiHandler := NewAPIHandler(log, ledger.New(db, log, opts))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting web server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, apiHandler.Routes()); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}
