package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cryptofolio-bot-go/internal/alerts"
	"cryptofolio-bot-go/internal/bybit"
	"cryptofolio-bot-go/internal/config"
	"cryptofolio-bot-go/internal/database"
	"cryptofolio-bot-go/internal/digest"
	"cryptofolio-bot-go/internal/ledger"
	"cryptofolio-bot-go/internal/logger"
	"cryptofolio-bot-go/internal/poller"
	"cryptofolio-bot-go/internal/telegram"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Initialize database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	opts, err := ledger.OptionsFromConfig(cfg.Ledger)
	if err != nil {
		log.Fatal("Invalid ledger configuration", zap.Error(err))
	}
	book := ledger.New(db, log, opts)
	if err := database.Seed(ctx, book, log); err != nil {
		log.Fatal("Failed to seed default strategy", zap.Error(err))
	}

	evaluator := alerts.NewEvaluator(log, alerts.NewState(), cfg.Alerts.Threshold())
	tracker := poller.NewTracker()
	book.AddListener(evaluator)
	book.AddListener(tracker)

	bot, err := telegram.NewBot(cfg.Telegram, book, log)
	if err != nil {
		log.Fatal("Failed to start Telegram bot", zap.Error(err))
	}
	notifier := bot.Notifier()

	feed := bybit.NewRestClient(&cfg.Feed, log)
	if err := feed.CheckHealth(ctx); err != nil {
		// The poller skips cycles until the feed recovers.
		log.Warn("Bybit API is not reachable yet", zap.Error(err))
	}

	pricePoller := poller.New(log, cfg.Poller, feed, book, evaluator, notifier, tracker)
	pricePoller.Start(ctx)

	var runner *digest.Runner
	if cfg.Digest.Enabled {
		runner = digest.NewRunner(log, ctx)
		if err := digest.NewJob(log, book, notifier).Schedule(runner, cfg.Digest.Schedule); err != nil {
			log.Fatal("Failed to schedule digest", zap.Error(err))
		}
		runner.Start()
	}

	go bot.Start()

	<-ctx.Done()
	bot.Stop()
	pricePoller.Stop()
	if runner != nil {
		runner.Stop()
	}
	log.Info("Bot has been shut down.")
}
