package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/emmett/pingpong/internal/game"
)

// Client calls a remote Scoreboard service
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to target without transport security. Extra options are
// applied after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &Client{cc: cc}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.cc.Close()
}

// Score returns the current snapshot
func (c *Client) Score(ctx context.Context) (game.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetScoreMethod, &emptypb.Empty{}, out); err != nil {
		return game.Snapshot{}, err
	}
	return snapshotFromStruct(out)
}

// Adjust changes a player's score by delta
func (c *Client) Adjust(ctx context.Context, player, delta int) (game.Snapshot, error) {
	in, err := structpb.NewStruct(map[string]any{"player": player, "delta": delta})
	if err != nil {
		return game.Snapshot{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AdjustScoreMethod, in, out); err != nil {
		return game.Snapshot{}, err
	}
	return snapshotFromStruct(out)
}

// SetPaused pauses or resumes the remote game
func (c *Client) SetPaused(ctx context.Context, paused bool) (game.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SetPausedMethod, wrapperspb.Bool(paused), out); err != nil {
		return game.Snapshot{}, err
	}
	return snapshotFromStruct(out)
}

// Quit stops the remote game
func (c *Client) Quit(ctx context.Context) error {
	return c.cc.Invoke(ctx, QuitMethod, &emptypb.Empty{}, &emptypb.Empty{})
}

// Watch calls fn for every snapshot until ctx is done, the server ends the
// stream or fn returns an error
func (c *Client) Watch(ctx context.Context, fn func(game.Snapshot) error) error {
	stream, err := c.cc.NewStream(ctx, &ScoreboardServiceDesc.Streams[0], WatchMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		snap, err := snapshotFromStruct(out)
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}
