package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/emmett/pingpong/internal/app"
	"github.com/emmett/pingpong/internal/audio"
	"github.com/emmett/pingpong/internal/config"
	"github.com/emmett/pingpong/internal/game"
	"github.com/emmett/pingpong/internal/input"
	"github.com/emmett/pingpong/internal/observe"
	"github.com/emmett/pingpong/internal/output"
	"github.com/emmett/pingpong/internal/publish"
	grpcserver "github.com/emmett/pingpong/internal/server/grpc"
	mcpserver "github.com/emmett/pingpong/internal/server/mcp"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a game scored from the microphones",
	Long: `Play a game. Both players calibrate by bouncing the ball on their side,
then the first serve starts the game. Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyGameFlags(cmd, cfg); err != nil {
			return err
		}
		if device, _ := cmd.Flags().GetString("device"); device != "" {
			cfg.Audio.Device = device
		}
		if record, _ := cmd.Flags().GetString("record"); record != "" {
			cfg.Audio.RecordFile = record
		}

		selected, err := app.NewDeviceManager().SelectDevice(cfg.Audio.Device)
		if err != nil {
			return err
		}
		slog.Info("using capture device", "device", selected.Name)
		return runGame(cmd.Context(), cfg, "")
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <recording.wav>",
	Short: "Play a game from a two-channel recording",
	Long: `Replay a recording through the live pipeline. Calibration is skipped
and player one stands on the side set by game.player1_side unless
--calibrate is given. The game stops when the recording runs out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Game.Calibrate = false
		if err := applyGameFlags(cmd, cfg); err != nil {
			return err
		}
		if fast, _ := cmd.Flags().GetBool("fast"); fast {
			cfg.Audio.Realtime = false
		}
		return runGame(cmd.Context(), cfg, args[0])
	},
}

func addGameFlags(cmd *cobra.Command) {
	cmd.Flags().String("player1", "", "player one's name (overrides config)")
	cmd.Flags().String("player2", "", "player two's name (overrides config)")
	cmd.Flags().String("player1-side", "", "side player one stands on when not calibrating: left or right")
	cmd.Flags().Int("points", 0, "points to win (overrides config)")
	cmd.Flags().Bool("calibrate", false, "locate the players before the first serve")
	cmd.Flags().String("events", "", "append game events as JSON lines to this file")
	cmd.Flags().String("captures", "", "save every capture to this JSON file when the game ends")
	cmd.Flags().Bool("grpc", false, "serve the scoreboard over gRPC")
	cmd.Flags().Bool("mcp", false, "serve the scoreboard as MCP tools")
	cmd.Flags().Bool("mqtt", false, "publish the scoreboard to MQTT")
	cmd.Flags().Bool("metrics", false, "expose Prometheus metrics")
}

// applyGameFlags copies explicitly set flags over the loaded configuration
func applyGameFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("player1") {
		cfg.Game.Player1, _ = flags.GetString("player1")
	}
	if flags.Changed("player2") {
		cfg.Game.Player2, _ = flags.GetString("player2")
	}
	if flags.Changed("player1-side") {
		cfg.Game.Player1Side, _ = flags.GetString("player1-side")
	}
	if flags.Changed("points") {
		cfg.Game.PointsToWin, _ = flags.GetInt("points")
	}
	if flags.Changed("calibrate") {
		cfg.Game.Calibrate, _ = flags.GetBool("calibrate")
	}
	if flags.Changed("events") {
		cfg.Output.EventsFile, _ = flags.GetString("events")
	}
	if flags.Changed("captures") {
		cfg.Output.CapturesFile, _ = flags.GetString("captures")
	}
	if flags.Changed("grpc") {
		cfg.GRPC.Enabled, _ = flags.GetBool("grpc")
	}
	if flags.Changed("mcp") {
		cfg.MCP.Enabled, _ = flags.GetBool("mcp")
	}
	if flags.Changed("mqtt") {
		cfg.MQTT.Enabled, _ = flags.GetBool("mqtt")
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled, _ = flags.GetBool("metrics")
	}
	return cfg.Validate()
}

// runGame plays one game from the microphones, or from wavPath when set,
// with every configured output and remote control attached
func runGame(parent context.Context, cfg *config.Config, wavPath string) error {
	opts, err := app.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observe.Metrics
	if cfg.Metrics.Enabled {
		m, shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		defer shutdown(context.Background())
		metrics = m
		go func() {
			if err := observe.Serve(ctx, cfg.Metrics.Addr); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	source, err := audio.NewSource(cfg.SourceConfig(), wavPath, cfg.Audio.Realtime)
	if err != nil {
		return fmt.Errorf("failed to open audio source: %w", err)
	}
	defer source.Close()

	console := output.NewConsoleOutput(output.ConsoleConfig{ShowTimestamp: cfg.Output.ShowTimestamp})
	prompter := output.NewConsolePrompter(os.Stdin, console)

	g, err := app.NewGame(opts, source, prompter, metrics)
	if err != nil {
		return err
	}
	g.Presenter().AddSink(console)
	board := g.Board()

	if cfg.Audio.RecordFile != "" && wavPath == "" {
		rec, err := audio.NewWavRecorder(cfg.Audio.RecordFile, cfg.Audio.SampleRate, cfg.Audio.Channels)
		if err != nil {
			return err
		}
		defer rec.Close()
		g.Producer().SetRecorder(rec)
		console.Info(fmt.Sprintf("Recording to %s", cfg.Audio.RecordFile))
	}

	if cfg.Output.EventsFile != "" {
		events, err := output.OpenEventLog(cfg.Output.EventsFile)
		if err != nil {
			return err
		}
		defer events.Close()
		g.Presenter().AddSink(events)
		events.WriteEvent("game_started", g.ID.String())
	}

	if cfg.MQTT.Enabled {
		client, err := publish.Connect(publish.ClientConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			return err
		}
		pub := publish.NewPublisher(client, cfg.MQTT.Topic)
		defer pub.Close()
		g.Presenter().AddSink(pub)
	}

	if cfg.GRPC.Enabled {
		srv := grpcserver.NewServer(grpcserver.Config{Host: cfg.GRPC.Host, Port: cfg.GRPC.Port}, board)
		go func() {
			if err := srv.Start(); err != nil {
				slog.Error("gRPC server stopped", "error", err)
			}
		}()
		defer srv.Stop()
	}

	if cfg.MCP.Enabled {
		srv := mcpserver.NewServer(mcpserver.Config{
			ServerName:    "pingpong",
			ServerVersion: Version,
			Addr:          cfg.MCP.Addr,
		}, board)
		go func() {
			if err := srv.Start(); err != nil {
				slog.Error("MCP server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	if cfg.Hotkeys.Enabled {
		hk := input.NewHotkeyManager(hotkeyBindings(cfg, board)...)
		if err := hk.Start(ctx); err != nil {
			slog.Warn("global hotkeys unavailable", "error", err)
		} else {
			defer hk.Stop()
		}
	}

	final, runErr := g.Run(ctx)

	if cfg.Output.CapturesFile != "" {
		if err := g.Queue().Save(cfg.Output.CapturesFile); err != nil {
			slog.Error("failed to save captures", "path", cfg.Output.CapturesFile, "error", err)
		} else {
			console.Info(fmt.Sprintf("Captures saved to %s", cfg.Output.CapturesFile))
		}
	}

	if runErr != nil {
		return runErr
	}
	if final != nil {
		slog.Info("game finished", "state", final.Name(), "detail", game.Describe(final))
	}
	return nil
}

func hotkeyBindings(cfg *config.Config, board *game.Scoreboard) []input.Binding {
	adjust := func(player, delta int) func() {
		return func() {
			if _, err := board.Adjust(player, delta); err != nil {
				slog.Warn("score adjustment failed", "error", err)
			}
		}
	}
	return []input.Binding{
		{Name: "pause", Combo: cfg.Hotkeys.Pause, Action: func() { board.TogglePause() }},
		{Name: "quit", Combo: cfg.Hotkeys.Quit, Action: board.Quit},
		{Name: "player1 up", Combo: cfg.Hotkeys.P1Up, Action: adjust(1, 1)},
		{Name: "player1 down", Combo: cfg.Hotkeys.P1Down, Action: adjust(1, -1)},
		{Name: "player2 up", Combo: cfg.Hotkeys.P2Up, Action: adjust(2, 1)},
		{Name: "player2 down", Combo: cfg.Hotkeys.P2Down, Action: adjust(2, -1)},
	}
}

func init() {
	addGameFlags(playCmd)
	playCmd.Flags().String("device", "", "capture device name or ID (see 'pingpong devices')")
	playCmd.Flags().String("record", "", "also write the raw microphone stream to this wav file")

	addGameFlags(replayCmd)
	replayCmd.Flags().Bool("fast", false, "read the recording as fast as possible instead of in real time")
}
