package grpc

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"

	"github.com/emmett/pingpong/internal/game"
)

// Server wraps the gRPC server and the scoreboard service
type Server struct {
	grpcServer *grpc.Server
	service    *Service
	addr       string
}

// Config holds server configuration
type Config struct {
	Host string
	Port int
}

// NewServer creates a gRPC server exposing board
func NewServer(cfg Config, board *game.Scoreboard) *Server {
	s := &Server{
		grpcServer: grpc.NewServer(),
		service:    NewService(board),
		addr:       net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
	}
	RegisterScoreboardServer(s.grpcServer, s.service)
	return s
}

// Start listens on the configured address and serves until Stop
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

// Stop ends open watch streams and gracefully stops the server
func (s *Server) Stop() {
	s.service.Close()
	s.grpcServer.GracefulStop()
}
