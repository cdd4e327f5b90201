/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the gift ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Configure logging
  3. Initialize SQLite store
  4. Build wallet ledger, payment provider, contribution engine, wishlist
  5. Start the background ledger audit
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the audit scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  ./server -db="./data/giftledger.db"
  ./server -db=":memory:" -port=3000
  LOG_LEVEL=debug ALLOW_OVERFUNDING=true ./server

SEE ALSO:
  - config/config.go: Environment keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/smartgifter/giftledger/api"
	"github.com/smartgifter/giftledger/config"
	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
	"github.com/smartgifter/giftledger/logging"
	"github.com/smartgifter/giftledger/metrics"
	"github.com/smartgifter/giftledger/store/sqlite"
	"github.com/smartgifter/giftledger/wallet"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	logger := logging.Setup(cfg.LogLevel)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Wallets and payments
	locks := generic.NewLocker(cfg.LockTimeout)
	wallets := wallet.NewLedger(store, generic.NewLedger(store), locks, cfg.Currency)

	topUps := wallet.NewTopUpService(wallets, wallet.NewSandbox(cfg.SandboxTopUpLimit, cfg.SandboxLatency))
	topUps.Observer = m
	topUps.Logger = logger

	// Gifting
	engine := gifting.NewEngine(store, store, wallets)
	engine.Policy = gifting.Policy{
		AllowOverfunding: cfg.AllowOverfunding,
		Retry:            cfg.RetryPolicy(),
	}
	engine.Observer = m
	engine.Logger = logger

	wishlist := gifting.NewWishlist(store, store, store, cfg.Currency)

	audit := api.NewAuditScheduler(gifting.NewAuditor(store, wallets), logger, cfg.AuditInterval)
	audit.Start()
	defer audit.Stop()

	handler := api.NewHandler(api.Services{
		Store:        store,
		Wallets:      wallets,
		TopUps:       topUps,
		Engine:       engine,
		Wishlist:     wishlist,
		Tokens:       api.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		Audit:        audit,
		WelcomeBonus: cfg.WelcomeBonus,
		DevMode:      cfg.IsDevelopment(),
	})

	router := api.NewRouter(handler, api.RouterOptions{
		Logger:   logger,
		Metrics:  m,
		Gatherer: registry,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", fmt.Sprintf("http://localhost:%d", *port),
			"db", *dbPath,
			"environment", cfg.Environment,
			"currency", cfg.Currency)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
