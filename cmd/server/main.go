/*
main.go - Application entry point

PURPOSE:
  Starts the attendance engine server: loads configuration, builds the
  logger, opens the SQLite row store, assembles the engine, and serves
  the HTTP surface with graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment (.env honored)
  2. Build zap logger
  3. Open SQLite row store and migrate tables
  4. Assemble the ledger engine and warm the holiday cache
  5. Start the holiday refresher and HTTP server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  active requests, stop the refresher, close the store.

ENVIRONMENT:
  PORT, DB_PATH, LEDGER_TZ, RETRY_ATTEMPTS, RETRY_BASE_DELAY,
  RETRY_MAX_DELAY, DEFAULT_ANNUAL_TOTAL, HOLIDAY_REFRESH, ADMIN_KEYS,
  LOG_LEVEL, LOG_FORMAT. See config package for defaults.
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/logging"
	"github.com/warp/attendance-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	loc, err := time.LoadLocation(cfg.LedgerTimezone)
	if err != nil {
		logger.Fatal("ledger timezone", zap.Error(err))
	}

	engine := ledger.NewEngine(store, ledger.NewClock(loc), ledger.Options{
		RetryAttempts:      cfg.RetryAttempts,
		RetryBaseDelay:     cfg.RetryBaseDelay,
		RetryMaxDelay:      cfg.RetryMaxDelay,
		DefaultAnnualTotal: cfg.DefaultAnnualTotal,
	}, logger)

	// Warm the holiday cache; a failure here is not fatal, the calendar
	// retries lazily on first use.
	if err := engine.Calendar.Refresh(context.Background()); err != nil {
		logger.Warn("initial holiday load failed", zap.Error(err))
	}

	refresher := api.NewHolidayRefresher(engine.Calendar, cfg.HolidayRefresh, logger)
	refresher.Start()
	defer refresher.Stop()

	handler := api.NewHandler(engine, cfg.AdminKeys, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.String("tz", cfg.LedgerTimezone))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
