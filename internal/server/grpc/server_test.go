package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/emmett/pingpong/internal/game"
)

func startServer(t *testing.T) (*game.Scoreboard, *Client) {
	t.Helper()
	p1 := &game.Player{ID: 1, Name: "alice"}
	p2 := &game.Player{ID: 2, Name: "bob"}
	board := game.NewScoreboard(p1, p2, game.DefaultRules(), nil)

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(Config{}, board)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return board, client
}

func TestScoreAndAdjust(t *testing.T) {
	board, client := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := client.Score(ctx)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if snap.Player1.Name != "alice" || snap.Player2.Name != "bob" {
		t.Errorf("players = %s, %s", snap.Player1.Name, snap.Player2.Name)
	}

	snap, err = client.Adjust(ctx, 2, 3)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if snap.Player2.Score != 3 {
		t.Errorf("player2 score = %d, want 3", snap.Player2.Score)
	}
	if _, s2 := board.Scores(); s2 != 3 {
		t.Errorf("board score = %d, want 3", s2)
	}

	snap, err = client.Adjust(ctx, 2, -5)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if snap.Player2.Score != 0 {
		t.Errorf("player2 score = %d, want clamped to 0", snap.Player2.Score)
	}
}

func TestAdjustUnknownPlayer(t *testing.T) {
	_, client := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Adjust(ctx, 3, 1)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Adjust(3) error = %v, want InvalidArgument", err)
	}
}

func TestPauseAndQuit(t *testing.T) {
	board, client := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := client.SetPaused(ctx, true)
	if err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	if !snap.Paused || !board.Paused() {
		t.Error("game should be paused")
	}

	if err := client.Quit(ctx); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	if !board.Quitting() {
		t.Error("board should be quitting")
	}
}

func TestWatchStreamsUpdates(t *testing.T) {
	board, client := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snaps := make(chan game.Snapshot, 8)
	go client.Watch(ctx, func(s game.Snapshot) error {
		snaps <- s
		return nil
	})

	select {
	case <-snaps:
	case <-ctx.Done():
		t.Fatal("no initial snapshot")
	}

	if _, err := board.Adjust(1, 2); err != nil {
		t.Fatalf("Adjust: %v", err)
	}

	for {
		select {
		case s := <-snaps:
			if s.Player1.Score == 2 {
				return
			}
		case <-ctx.Done():
			t.Fatal("adjustment never streamed")
		}
	}
}
