package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-core/transport/ws"

	"github.com/Netflix/go-env"
	"github.com/mama165/sdk-go/logs"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL      string `env:"CHAT_SERVER_URL,default=ws://localhost:8080/ws"`
	Token          string `env:"CHAT_TOKEN,required=true"`
	ConversationID string `env:"CHAT_CONVERSATION_ID"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run connects, optionally joins one conversation room, and prints every
// event pushed by the server until interrupted.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, config.ServerURL+"?token="+config.Token, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	if config.ConversationID != "" {
		join := ws.Envelope{ID: 1, Event: ws.EventJoinConversation,
			Data: []byte(fmt.Sprintf(`{"conversationId":%q}`, config.ConversationID))}
		if err := wsjson.Write(ctx, conn, join); err != nil {
			return exitRuntime, fmt.Errorf("join failed: %w", err)
		}
	}

	log.Info("Connected, listening (Ctrl+C to quit)...", "url", config.ServerURL)

	for {
		var raw map[string]any
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("stream error: %w", err)
		}
		log.Info(fmt.Sprintf("<- %v", raw))
	}
}
