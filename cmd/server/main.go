package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"courier/auth"
	"courier/repositories"
	"courier/runtime"
	"courier/runtime/workers"
	courierserver "courier/server"
	"courier/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB), bounded retries instead of waiting forever
	db, err := openBadger(log, config)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core wiring: registry, store, router, identity services
	registry := runtime.NewRegistry()
	messageRepository := repositories.NewMessageRepository(db, log, config.StoreTimeout)
	router := runtime.NewRouter(log, registry, messageRepository,
		config.MaxContentLength, config.DeliveryTimeout)

	tokens := auth.NewTokenService(config.JWTSecret, config.AuthTokenDuration)
	userRepository := repositories.NewUserRepository(db)
	authService := services.NewAuthService(userRepository, tokens)

	// 4. Background workers under supervision
	health := workers.NewHealthMonitoringWorker(log, config.MetricInterval, registry.Size)
	sup := workers.NewSupervisor(log)
	sup.Add(health, workers.NewStorageGCWorker(log, db, config.StorageGCInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 5. HTTP server
	handler := courierserver.NewServer(log, tokens, authService, router,
		registry, messageRepository, health,
		splitOrigins(config.AllowedOrigins),
		config.ConnectionBufferSize, maxFrameSize(config.MaxContentLength))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 7. Final cleanup: stop accepting, close connections, stop workers
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// openBadger opens the store with a bounded backoff loop. The original
// system retried its backend forever; here a persistently unreachable store
// fails the boot after the configured attempts.
func openBadger(log *slog.Logger, config Config) (*badger.DB, error) {
	options := badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING)

	var lastErr error
	for attempt := 1; attempt <= config.StoreOpenAttempts; attempt++ {
		db, err := badger.Open(options)
		if err == nil {
			return db, nil
		}
		lastErr = err
		log.Warn("Badger open failed",
			"attempt", attempt,
			"max_attempts", config.StoreOpenAttempts,
			"error", err)
		if attempt < config.StoreOpenAttempts {
			time.Sleep(config.StoreOpenBackoff * time.Duration(attempt))
		}
	}
	return nil, lastErr
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// maxFrameSize bounds the websocket read limit: the content plus headroom
// for the JSON envelope and the recipient id.
func maxFrameSize(maxContentLength int) int64 {
	return int64(maxContentLength + 1024)
}
