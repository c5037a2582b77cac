package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"whisper/auth"
	"whisper/domain/event"
	"whisper/infrastructure/httpapi"
	"whisper/infrastructure/ws"
	"whisper/internal"
	"whisper/moderation"
	"whisper/observability"
	"whisper/presence"
	"whisper/repositories"
	"whisper/runtime"
	"whisper/runtime/workers"
	"whisper/services"
	"whisper/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer executes before the process
// exits.
func run() error {
	// 1. Configuration & Logger. A local .env is optional.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage: Badger for state, Bluge for the search projection.
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	searchIndex, err := repositories.NewSearchIndex(config.BlugeFilepath, log, config.SearchLimit)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = searchIndex.Close()
	}()

	chatRepository := repositories.NewChatRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log)
	userRepository := repositories.NewUserRepository(db)

	// 3. Moderation: embedded defaults plus an optional operator file.
	words := moderation.DefaultWords()
	if config.ModerationWordsFile != "" {
		raw, err := os.ReadFile(config.ModerationWordsFile)
		if err != nil {
			return fmt.Errorf("moderation words file: %w", err)
		}
		words = append(words, moderation.ParseWordList(string(raw))...)
	}
	filter, err := moderation.NewFilter(words, []rune(config.ModerationChar)[0], log)
	if err != nil {
		return fmt.Errorf("moderation filter: %w", err)
	}

	// 4. Real-time core.
	monitoring := observability.NewMonitoring()
	registry := presence.NewRegistry(log)
	broadcaster := runtime.NewBroadcaster(log, registry, monitoring, config.BufferSize)
	broadcaster.Add(sink.NewSearchSink(searchIndex, log))
	registry.OnPresenceChange(func(online []string) {
		broadcaster.Publish(event.PresenceChanged{Online: online})
	})

	// 5. Services & transport.
	tokens := auth.NewTokenManager(config.AuthSecret, "whisper", config.AuthTokenDuration)
	chatService := services.NewChatService(log, chatRepository, messageRepository,
		searchIndex, filter, broadcaster, monitoring)
	authService := services.NewAuthService(userRepository, tokens)

	wsServer := ws.NewServer(log, registry, chatService, tokens, config.ConnectionBufferSize)
	handler := httpapi.NewHandler(log, chatService, authService)
	router := httpapi.NewRouter(handler, tokens, wsServer.Handle)

	if config.DebugPort > 0 {
		internal.StartDebugServer(db, monitoring, config.DebugPort, log)
	}

	// 6. Context & signals.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Supervised background workers.
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(broadcaster)
	sup.Add(workers.NewHeartbeatWorker(log, monitoring, config.HeartbeatInterval))

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 8. HTTP server.
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 9. Wait for stop or error.
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 10. Final cleanup.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
