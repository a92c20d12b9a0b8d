// echomind-mcp exposes the dialogue pipeline as an MCP stdio server.
//
// It reads the same environment as the HTTP server. Every tool takes a
// user_id; conversations are scoped to it exactly as they are for the
// X-User-ID header over HTTP.
//
// Usage:
//
//	go install github.com/zhouzirui/echomind/backend/cmd/mcp
//	STORE_DRIVER=sqlite mcp
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/app"
	"github.com/zhouzirui/echomind/backend/internal/auth"
	"github.com/zhouzirui/echomind/backend/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// zap writes to stderr; stdout belongs to the transport.
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	reportEnvFile(logger, envErr)

	application, err := app.New(ctx, cfg, logger, auth.ContextProvider{})
	if err != nil {
		logger.Fatal("failed to initialise application", zap.Error(err))
	}
	defer application.Close()

	server := newServer(&toolset{
		dialogue: application.Dialogue,
		metrics:  application.Metrics,
		logger:   logger.Named("mcp"),
	})

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
	}
}

func reportEnvFile(logger *zap.Logger, err error) {
	if err != nil {
		logger.Info("no .env file loaded, continuing with system environment variables only", zap.Error(err))
	}
}

func newServer(tools *toolset) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "echomind-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "process_voice_input",
		Description: "Analyse one utterance (emotion, intent, entities), generate a reply and append the turn to the user's session.",
	}, tools.processVoiceInput)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_conversation_history",
		Description: "Return the stored conversation for a user's session, or null when the session has no turns yet.",
	}, tools.getConversationHistory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_performance_metrics",
		Description: "Summarise the user's conversations: totals plus average sentiment and intent confidence.",
	}, tools.getPerformanceMetrics)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "initialize_defaults",
		Description: "Seed the default intent rules and emotion model. Does nothing when rules already exist.",
	}, tools.initializeDefaults)

	return server
}
