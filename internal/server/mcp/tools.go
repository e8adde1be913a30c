package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/pingpong/internal/game"
	"github.com/emmett/pingpong/internal/output"
)

type GetScoreArgs struct{}

type AdjustScoreArgs struct {
	Player int `json:"player"`
	Delta  int `json:"delta"`
}

type SetPausedArgs struct {
	Paused bool `json:"paused"`
}

type QuitArgs struct{}

func (s *Server) handleGetScore(ctx context.Context, req *sdk.CallToolRequest, args GetScoreArgs) (*sdk.CallToolResult, any, error) {
	result, err := s.scoreResult()
	if err != nil {
		return nil, nil, err
	}

	leader, lead, _, trail := s.board.Result()
	summary := fmt.Sprintf("%s leads %d to %d", leader, lead, trail)
	if lead == trail {
		summary = fmt.Sprintf("tied at %d", lead)
	}
	result.Content = append(result.Content, &sdk.TextContent{Text: summary})
	return result, nil, nil
}

func (s *Server) handleAdjustScore(ctx context.Context, req *sdk.CallToolRequest, args AdjustScoreArgs) (*sdk.CallToolResult, any, error) {
	score, err := s.board.Adjust(args.Player, args.Delta)
	if errors.Is(err, game.ErrUnknownPlayer) {
		return &sdk.CallToolResult{
			IsError: true,
			Content: []sdk.Content{&sdk.TextContent{Text: err.Error()}},
		}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to adjust score: %w", err)
	}

	result, err := s.scoreResult()
	if err != nil {
		return nil, nil, err
	}
	result.Content = append(result.Content, &sdk.TextContent{Text: fmt.Sprintf("player %d now has %d", args.Player, score)})
	return result, nil, nil
}

func (s *Server) handleSetPaused(ctx context.Context, req *sdk.CallToolRequest, args SetPausedArgs) (*sdk.CallToolResult, any, error) {
	s.board.SetPaused(args.Paused)
	result, err := s.scoreResult()
	if err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}

func (s *Server) handleQuit(ctx context.Context, req *sdk.CallToolRequest, args QuitArgs) (*sdk.CallToolResult, any, error) {
	s.board.Quit()
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: "game ending"}},
	}, nil, nil
}

// scoreResult renders the current snapshot as a text line and as JSON
func (s *Server) scoreResult() (*sdk.CallToolResult, error) {
	snap := s.board.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return &sdk.CallToolResult{
		Content: []sdk.Content{
			&sdk.TextContent{Text: output.FormatSnapshot(snap)},
			&sdk.TextContent{Text: string(data)},
		},
	}, nil
}
