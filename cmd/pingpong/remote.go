package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/emmett/pingpong/internal/game"
	"github.com/emmett/pingpong/internal/output"
	grpcserver "github.com/emmett/pingpong/internal/server/grpc"
)

var remoteAddr string

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Control a running game over gRPC",
}

func dialRemote() (*grpcserver.Client, error) {
	addr := remoteAddr
	if addr == "" {
		addr = net.JoinHostPort(cfg.GRPC.Host, strconv.Itoa(cfg.GRPC.Port))
	}
	return grpcserver.Dial(addr)
}

// remoteCall runs fn against the remote scoreboard and prints the snapshot
// it returns
func remoteCall(fn func(context.Context, *grpcserver.Client) (game.Snapshot, error)) error {
	client, err := dialRemote()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := fn(ctx, client)
	if err != nil {
		return err
	}
	fmt.Println(output.FormatSnapshot(snap))
	return nil
}

var remoteScoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Show the score",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return remoteCall(func(ctx context.Context, c *grpcserver.Client) (game.Snapshot, error) {
			return c.Score(ctx)
		})
	},
}

var remotePauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return remoteCall(func(ctx context.Context, c *grpcserver.Client) (game.Snapshot, error) {
			return c.SetPaused(ctx, true)
		})
	},
}

var remoteResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return remoteCall(func(ctx context.Context, c *grpcserver.Client) (game.Snapshot, error) {
			return c.SetPaused(ctx, false)
		})
	},
}

var remoteAdjustCmd = &cobra.Command{
	Use:   "adjust <player> <delta>",
	Short: "Correct a player's score, e.g. 'adjust 2 -1'",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		player, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid player %q: %w", args[0], err)
		}
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid delta %q: %w", args[1], err)
		}
		return remoteCall(func(ctx context.Context, c *grpcserver.Client) (game.Snapshot, error) {
			return c.Adjust(ctx, player, delta)
		})
	},
}

var remoteQuitCmd = &cobra.Command{
	Use:   "quit",
	Short: "End the game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialRemote()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Quit(ctx)
	},
}

var remoteWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the score until the game ends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialRemote()
		if err != nil {
			return err
		}
		defer client.Close()

		console := output.DefaultConsoleOutput()
		return client.Watch(cmd.Context(), console.WriteSnapshot)
	},
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteAddr, "addr", "", "scoreboard address (default: grpc.host:grpc.port from config)")

	remoteCmd.AddCommand(remoteScoreCmd)
	remoteCmd.AddCommand(remotePauseCmd)
	remoteCmd.AddCommand(remoteResumeCmd)
	remoteCmd.AddCommand(remoteAdjustCmd)
	remoteCmd.AddCommand(remoteQuitCmd)
	remoteCmd.AddCommand(remoteWatchCmd)
}
