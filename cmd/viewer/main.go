package main

import (
	"chat-hub/internal"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run serves the inspection page next to a live server.
func run() error {
	// 1. Load config
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	if config.StoreDriver != internal.DriverBadger {
		return fmt.Errorf("viewer only reads the badger store, STORE_DRIVER is %q", config.StoreDriver)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Open Badger in Read-Only mode
	// BypassLockGuard allows opening while the server holds the lock
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := func() map[string]any {
		lsm, vlog := db.Size()
		return map[string]any{
			"Mode": "read-only",
			"LSM":  lsm,
			"VLog": vlog,
			"Time": time.Now().Format(time.RFC822),
		}
	}
	server := internal.NewDebugServer(log, db, config.DebugPort, stats)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Viewer started", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errChan:
		return err
	}
	return server.Shutdown(context.Background())
}
