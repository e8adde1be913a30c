package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/pingpong/internal/game"
)

type Config struct {
	ServerName    string
	ServerVersion string
	Addr          string
}

type Server struct {
	config     Config
	mcpServer  *sdk.Server
	board      *game.Scoreboard
	httpServer *http.Server
}

func NewServer(cfg Config, board *game.Scoreboard) *Server {
	s := &Server{
		config: cfg,
		board:  board,
	}

	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)
	s.registerTools()

	handler := sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server {
		return s.mcpServer
	}, nil)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves the tools over streamable HTTP until Stop
func (s *Server) Start() error {
	slog.Info("MCP server listening", "addr", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "get_score",
		Description: "Get the current ping pong score, serving player and game state",
		InputSchema: map[string]any{"type": "object"},
	}, s.handleGetScore)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "adjust_score",
		Description: "Correct a player's score by a positive or negative amount",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"player": map[string]any{"type": "integer", "description": "Player number, 1 or 2"},
				"delta":  map[string]any{"type": "integer", "description": "Points to add, negative to remove"},
			},
			"required": []string{"player", "delta"},
		},
	}, s.handleAdjustScore)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "set_paused",
		Description: "Pause or resume the game",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"paused": map[string]any{"type": "boolean"},
			},
			"required": []string{"paused"},
		},
	}, s.handleSetPaused)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "quit",
		Description: "End the game",
		InputSchema: map[string]any{"type": "object"},
	}, s.handleQuit)
}
