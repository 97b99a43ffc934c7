/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payment plan engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Configure logging
  3. Initialize SQLite store
  4. Load the program policy catalog (fatal if missing)
  5. Connect the invalidation feed (optional, redis)
  6. Start the draft sweeper
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS (env fallback in parens):
  -port       HTTP server port (PORT, default: 8080)
  -db         SQLite database path (DATABASE_PATH, default: plans.db)
              Use ":memory:" for an in-memory database
  -policy     Program policy JSON path (POLICY_PATH, default: policy.json)
  -redis      Redis URL for the invalidation feed (REDIS_URL, empty = off)
  -sweep      Cron spec for the draft sweeper (SWEEP_SPEC, default: @hourly)
  -log-level  Log level (LOG_LEVEL, default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper and close the feed
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - policy/policy.go: Policy catalog loading
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/warp/plan-engine/api"
	"github.com/warp/plan-engine/feed"
	"github.com/warp/plan-engine/policy"
	"github.com/warp/plan-engine/store/sqlite"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional; real env vars win over file values.
	_ = godotenv.Load()

	// Flags
	port := flag.String("port", envOr("PORT", "8080"), "HTTP server port")
	dbPath := flag.String("db", envOr("DATABASE_PATH", "plans.db"), "SQLite database path")
	policyPath := flag.String("policy", envOr("POLICY_PATH", "policy.json"), "program policy JSON path")
	redisURL := flag.String("redis", envOr("REDIS_URL", ""), "redis URL for the invalidation feed")
	sweepSpec := flag.String("sweep", envOr("SWEEP_SPEC", "@hourly"), "cron spec for the draft sweeper")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	// Logging
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	}

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Policy catalog. Without it the engine cannot calculate, so this is
	// fatal rather than a degraded start.
	catalog, err := policy.Load(*policyPath)
	if err != nil {
		log.WithError(err).WithField("path", *policyPath).Fatal("failed to load program policy")
	}

	// Handler + sweeper
	handler := api.NewHandler(store, store, catalog, log)
	sweeper := api.NewSweeper(store, log, 0)
	if err := sweeper.Start(*sweepSpec); err != nil {
		log.WithError(err).Fatal("failed to start draft sweeper")
	}
	defer sweeper.Stop()

	// Invalidation feed (optional)
	ctx := context.Background()
	if *redisURL != "" {
		rf, err := feed.NewRedis(ctx, *redisURL, feed.DefaultChannel, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect invalidation feed")
		}
		defer rf.Close()
		if err := rf.Subscribe(ctx, sweeper.RefreshCase); err != nil {
			log.WithError(err).Fatal("failed to subscribe to invalidation feed")
		}
		handler.Publish = rf.Publish
		log.WithField("channel", feed.DefaultChannel).Info("invalidation feed connected")
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", *port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
