package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/emmett/pingpong/internal/game"
)

const serviceName = "pingpong.v1.Scoreboard"

// Full method names
const (
	GetScoreMethod    = "/" + serviceName + "/GetScore"
	AdjustScoreMethod = "/" + serviceName + "/AdjustScore"
	SetPausedMethod   = "/" + serviceName + "/SetPaused"
	QuitMethod        = "/" + serviceName + "/Quit"
	WatchMethod       = "/" + serviceName + "/Watch"
)

// ScoreboardServer is the server API for the pingpong.v1.Scoreboard service.
// Scores travel as a Struct carrying the JSON form of game.Snapshot.
type ScoreboardServer interface {
	GetScore(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// AdjustScore takes {"player": 1|2, "delta": n}
	AdjustScore(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetPaused(context.Context, *wrapperspb.BoolValue) (*structpb.Struct, error)
	Quit(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

// ScoreboardServiceDesc describes the Scoreboard service for registration
// and client streams
var ScoreboardServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ScoreboardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetScore", Handler: unaryHandler(GetScoreMethod, ScoreboardServer.GetScore)},
		{MethodName: "AdjustScore", Handler: unaryHandler(AdjustScoreMethod, ScoreboardServer.AdjustScore)},
		{MethodName: "SetPaused", Handler: unaryHandler(SetPausedMethod, ScoreboardServer.SetPaused)},
		{MethodName: "Quit", Handler: unaryHandler(QuitMethod, ScoreboardServer.Quit)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "pingpong/v1/scoreboard.proto",
}

// RegisterScoreboardServer registers srv with s
func RegisterScoreboardServer(s grpc.ServiceRegistrar, srv ScoreboardServer) {
	s.RegisterService(&ScoreboardServiceDesc, srv)
}

func unaryHandler[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](method string, call func(ScoreboardServer, context.Context, PReq) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ScoreboardServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ScoreboardServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ScoreboardServer).Watch(in, stream)
}

// watchBuffer is how many snapshots a slow watcher may fall behind before
// updates are dropped for it
const watchBuffer = 16

// Service implements ScoreboardServer on top of a game.Scoreboard
type Service struct {
	board  *game.Scoreboard
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[chan game.Snapshot]struct{}
	done     chan struct{}
	closed   bool
}

// NewService creates a service for board and subscribes to its updates
func NewService(board *game.Scoreboard) *Service {
	s := &Service{
		board:    board,
		logger:   slog.Default().With("component", "grpc"),
		watchers: make(map[chan game.Snapshot]struct{}),
		done:     make(chan struct{}),
	}
	board.Subscribe(s.broadcast)
	return s
}

// Close ends every open watch stream
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

func (s *Service) broadcast(snap game.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			s.logger.Warn("watcher falling behind, dropping snapshot", "seq", snap.Seq)
		}
	}
}

// GetScore returns the current snapshot
func (s *Service) GetScore(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return snapshotStruct(s.board.Snapshot())
}

// AdjustScore changes one player's score
func (s *Service) AdjustScore(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	player, ok := fields["player"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "player is required")
	}
	delta, ok := fields["delta"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "delta is required")
	}

	score, err := s.board.Adjust(int(player.GetNumberValue()), int(delta.GetNumberValue()))
	if errors.Is(err, game.ErrUnknownPlayer) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.logger.Info("score adjusted", "player", int(player.GetNumberValue()), "delta", int(delta.GetNumberValue()), "score", score)
	return snapshotStruct(s.board.Snapshot())
}

// SetPaused pauses or resumes the game
func (s *Service) SetPaused(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.Struct, error) {
	s.board.SetPaused(req.GetValue())
	s.logger.Info("pause set", "paused", req.GetValue())
	return snapshotStruct(s.board.Snapshot())
}

// Quit stops the game
func (s *Service) Quit(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.logger.Info("quit requested")
	s.board.Quit()
	return &emptypb.Empty{}, nil
}

// Watch streams the current snapshot and then every update until the client
// goes away or the service closes
func (s *Service) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch := make(chan game.Snapshot, watchBuffer)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return status.Error(codes.Unavailable, "scoreboard closed")
	}
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
	}()

	if err := sendSnapshot(stream, s.board.Snapshot()); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case snap := <-ch:
			if err := sendSnapshot(stream, snap); err != nil {
				return err
			}
		}
	}
}

func sendSnapshot(stream grpc.ServerStream, snap game.Snapshot) error {
	st, err := snapshotStruct(snap)
	if err != nil {
		return err
	}
	return stream.SendMsg(st)
}

// snapshotStruct converts a snapshot to a Struct through its JSON form
func snapshotStruct(snap game.Snapshot) (*structpb.Struct, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to encode snapshot: %v", err))
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to encode snapshot: %v", err))
	}
	return st, nil
}

// snapshotFromStruct reverses snapshotStruct
func snapshotFromStruct(st *structpb.Struct) (game.Snapshot, error) {
	var snap game.Snapshot
	data, err := protojson.Marshal(st)
	if err != nil {
		return snap, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}
