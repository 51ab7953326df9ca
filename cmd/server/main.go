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

	"chat-core/auth"
	"chat-core/identity"
	"chat-core/internal"
	"chat-core/moderation"
	"chat-core/repositories"
	"chat-core/rooms"
	"chat-core/services"
	"chat-core/transport/httpapi"
	"chat-core/transport/ws"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or
// service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper. Its only responsibility is
	// to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so deferred cleanup (database close) always
// executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := characterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & moderation
	userRepository := repositories.NewUserRepository(db)
	conversationRepository := repositories.NewConversationRepository(db)
	messageRepository := repositories.NewMessageRepository(db, logger)

	words, err := moderation.LoadWords(config.CensoredWordsPath)
	if err != nil {
		return exitConfig, fmt.Errorf("censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(words, charReplacement)
	if err != nil {
		return exitConfig, fmt.Errorf("moderator init failed: %w", err)
	}

	// 4. Identity, services, fan-out
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration, config.RefreshTokenDuration)

	var verifier identity.Verifier
	if config.IdentityProviderURL != "" {
		logger.Info("Using external identity provider", "url", config.IdentityProviderURL)
		verifier = identity.NewHTTPProvider(config.IdentityProviderURL, config.IdentityProviderTimeout)
	} else {
		logger.Info("Using local credential store for identity")
		verifier = identity.NewLocalVerifier(tokens, userRepository)
	}
	bridge := identity.NewBridge(verifier, userRepository, logger)

	registry := rooms.NewRegistry(logger)
	chatService := services.NewChatService(conversationRepository, messageRepository, registry, &moderator, logger)
	authService := services.NewAuthService(userRepository, tokens)

	// 5. HTTP surface + websocket endpoint
	wsHandler := ws.NewHandler(bridge, chatService, registry, config.ConnectionBufferSize, logger)
	handlers := httpapi.NewHandlers(chatService, authService, config.RefreshTokenDuration, logger)
	router := httpapi.NewRouter(handlers, bridge, wsHandler, logger)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: router,
	}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Graceful Shutdown: let active requests and sessions drain.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Forced shutdown", "error", err)
	}
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("CHARACTER_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}
