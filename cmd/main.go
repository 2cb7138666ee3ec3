package main

import (
	"chat-hub/api"
	"chat-hub/cache"
	"chat-hub/contract"
	"chat-hub/internal"
	"chat-hub/observability"
	"chat-hub/repositories"
	"chat-hub/repositories/sqlite"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"chat-hub/services"
	"chat-hub/transport"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns the server lifecycle so that deferred
// cleanup always runs before the process exits.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Persistence
	store, err := openStore(config, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing store...", "driver", config.StoreDriver)
		_ = store.Close()
	}()

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Core
	hub := transport.NewHub(log, transport.Options{
		SendBuffer:     config.SendBuffer,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: config.MaxFrameSize,
	})
	readCache := cache.New(config.CacheShards).WithLoadTimeout(config.CacheLoadTimeout)
	dispatcher := runtime.NewDispatcher(log, hub, config.SendTimeout)
	registry := runtime.NewRegistry()
	presence := runtime.NewPresence()
	membership := runtime.NewMembership(log, store, hub)

	filter, err := config.Filter()
	if err != nil {
		return err
	}
	chatService := services.NewChatService(log, store, readCache, config.Tiers(), dispatcher, presence, membership, filter)
	statusWriter := workers.NewStatusWriter(log, store, config.StatusBufferSize, config.StatusTimeout, chatService.InvalidateUser)
	hubService := services.NewHubService(log, registry, presence, membership, dispatcher, statusWriter)

	monitor := observability.NewMonitor(log, observability.Gauges{
		Connections:       hub.Len,
		OnlineUsers:       presence.OnlineCount,
		CacheEntries:      readCache.Len,
		StatusQueue:       statusWriter.Backlog,
		BroadcastFailures: dispatcher.Failures,
	})

	// 5. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		hub,
		statusWriter,
		workers.NewCacheJanitor(log, readCache, config.CacheJanitorEvery),
		workers.NewHealthReporter(log, monitor, config.HealthInterval),
	)
	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		sup.Run(ctx)
	}()

	// 6. HTTP Server
	ws := transport.NewHandler(ctx, hub, hubService, transport.CheckOrigin(config.Origins()))
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           api.NewRouter(log, api.NewHandler(log, chatService), ws),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", server.Addr, "store", config.StoreDriver, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// The inspection page reads the live badger store, DEBUG_PORT=0 disables it
	var debugServer *http.Server
	if badgerStore, ok := store.(*repositories.BadgerStore); ok && config.DebugPort > 0 {
		debugServer = internal.NewDebugServer(log, badgerStore.DB(), config.DebugPort, monitor.Map)
		go func() {
			log.Info("Debug server started", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Debug server stopped", "error", err)
			}
		}()
	}

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		sup.Stop()
		<-supervised
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", "error", err)
	}
	if debugServer != nil {
		_ = debugServer.Shutdown(shutdownCtx)
	}
	sup.Stop()
	<-supervised
	log.Info("Program stopped cleanly")

	return nil
}

func openStore(config internal.Config, log *slog.Logger) (contract.IStore, error) {
	switch config.StoreDriver {
	case internal.DriverSqlite:
		store, err := sqlite.Open(config.SqlitePath, log)
		if err != nil {
			return nil, fmt.Errorf("sqlite opening failed: %w", err)
		}
		return store, nil
	default:
		store, err := repositories.OpenBadgerStore(config.BadgerFilepath, log)
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		return store, nil
	}
}
