package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/emmett/pingpong/internal/audio"
	"github.com/emmett/pingpong/internal/config"
	"github.com/emmett/pingpong/internal/direction"
	"github.com/emmett/pingpong/internal/dsp"
	"github.com/emmett/pingpong/internal/game"
	"github.com/emmett/pingpong/internal/observe"
	"github.com/emmett/pingpong/internal/segment"
)

// Options holds everything a game session needs
type Options struct {
	BlockFrames   int
	Filter        dsp.FilterSpec
	Segment       segment.Config
	Technique     direction.Technique
	MaxDelay      int
	MeanEnergyMin float64
	Polarity      int

	Rules       game.Rules
	Player1     string
	Player2     string
	Player1Side direction.Side

	ServeTimeout     time.Duration
	EventTimeout     time.Duration
	PostScoreTimeout time.Duration

	Calibrate bool
	AskNames  bool
}

// OptionsFromConfig validates cfg and converts it to session options
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	technique, err := cfg.Technique()
	if err != nil {
		return Options{}, err
	}
	maxDelay, err := cfg.MaxDelay()
	if err != nil {
		return Options{}, err
	}
	side, err := cfg.Player1Side()
	if err != nil {
		return Options{}, err
	}

	return Options{
		BlockFrames:      cfg.Audio.BlockLen,
		Filter:           cfg.FilterSpec(),
		Segment:          cfg.SegmentConfig(),
		Technique:        technique,
		MaxDelay:         maxDelay,
		MeanEnergyMin:    cfg.Detect.MeanEnergyMin,
		Polarity:         cfg.Detect.Polarity,
		Rules:            cfg.Rules(),
		Player1:          cfg.Game.Player1,
		Player2:          cfg.Game.Player2,
		Player1Side:      side,
		ServeTimeout:     cfg.Game.ServeTimeout,
		EventTimeout:     cfg.Game.EventTimeout,
		PostScoreTimeout: cfg.Game.PostScoreTimeout,
		Calibrate:        cfg.Game.Calibrate,
		AskNames:         cfg.Game.AskNames,
	}, nil
}

// Game runs one scored game: the audio producer, the event loop and the
// presentation of scoreboard snapshots
type Game struct {
	ID uuid.UUID

	opts      Options
	board     *game.Scoreboard
	queue     *segment.Queue
	engine    *segment.Engine
	producer  *Producer
	coord     *game.Coordinator
	rally     *game.Rally
	presenter *Presenter
	metrics   *observe.Metrics
	wake      chan struct{}
	logger    *slog.Logger
}

// NewGame wires a game session reading from source. prompter may be nil, in
// which case messages are skipped and every question is answered yes.
// metrics may be nil.
func NewGame(opts Options, source audio.Source, prompter game.Prompter, metrics *observe.Metrics) (*Game, error) {
	sections, err := dsp.Design(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to design filter: %w", err)
	}

	queue := segment.NewQueue()
	engine, err := segment.NewEngine(opts.Segment, queue, metrics)
	if err != nil {
		return nil, err
	}

	estimator, err := direction.New(opts.Technique, opts.MaxDelay)
	if err != nil {
		return nil, err
	}

	p1 := &game.Player{ID: 1, Name: opts.Player1}
	p2 := &game.Player{ID: 2, Name: opts.Player2}
	board := game.NewScoreboard(p1, p2, opts.Rules, prompter)
	board.SetGate(engine)

	id := uuid.New()
	g := &Game{
		ID:        id,
		opts:      opts,
		board:     board,
		queue:     queue,
		engine:    engine,
		producer:  NewProducer(source, opts.BlockFrames, sections, engine, opts.Polarity),
		coord:     game.NewCoordinator(queue, estimator, board, opts.MeanEnergyMin, metrics),
		rally:     game.NewRally(p1, p2),
		presenter: NewPresenter(),
		metrics:   metrics,
		wake:      make(chan struct{}, 1),
		logger:    slog.Default().With("component", "game", "game_id", id),
	}

	board.Subscribe(g.presenter.Publish)
	board.Subscribe(func(s game.Snapshot) {
		// waiting for a capture must not outlive a pause or a quit
		if s.Paused || board.Quitting() {
			queue.WakeAll()
		}
		select {
		case g.wake <- struct{}{}:
		default:
		}
	})

	return g, nil
}

// Board returns the scoreboard shared with remote controls
func (g *Game) Board() *game.Scoreboard {
	return g.board
}

// Queue returns the capture queue
func (g *Game) Queue() *segment.Queue {
	return g.queue
}

// Producer returns the audio producer
func (g *Game) Producer() *Producer {
	return g.producer
}

// Presenter returns the snapshot presenter. Sinks must be added before Run.
func (g *Game) Presenter() *Presenter {
	return g.presenter
}

// Run plays until the game ends, errors, is quit or ctx is cancelled, and
// returns the final state
func (g *Game) Run(ctx context.Context) (game.State, error) {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	eg, gctx := errgroup.WithContext(runCtx)

	g.logger.Info("game starting",
		"player1", g.opts.Player1, "player2", g.opts.Player2,
		"technique", g.opts.Technique, "max_delay", g.opts.MaxDelay)

	eg.Go(func() error {
		return g.presenter.Run(gctx)
	})

	eg.Go(func() error {
		err := g.producer.Run(gctx)
		if errors.Is(err, io.EOF) {
			g.finishWhenDrained(gctx)
			return nil
		}
		return err
	})

	var final game.State
	eg.Go(func() error {
		defer stop()
		var err error
		final, err = g.play(gctx)
		return err
	})

	err := eg.Wait()
	if final != nil && (game.IsTerminal(final) || ctx.Err() == nil) {
		g.announce(final)
	}
	return final, err
}

// play calibrates, then runs rallies until a terminal state or a quit,
// sitting out pauses in between
func (g *Game) play(ctx context.Context) (game.State, error) {
	p1, _ := g.board.Players()

	if g.opts.Calibrate {
		cal := game.NewCalibrator(g.board, g.coord, g.producer, g.opts.ServeTimeout, g.opts.AskNames)
		if err := cal.Run(ctx); err != nil {
			if ctx.Err() != nil || g.board.Quitting() {
				return g.board.State(), nil
			}
			return g.board.State(), err
		}
		// calibration bounces must not count as a serve
		if n := g.queue.Clear(); n > 0 {
			g.metrics.RecordDequeue(ctx, n)
		}
	} else {
		g.board.SetPosition(p1, g.opts.Player1Side)
	}

	if err := g.board.Message(fmt.Sprintf("begin game when ready, %s serves", p1)); err != nil {
		return g.board.State(), fmt.Errorf("failed to show message: %w", err)
	}
	g.board.SetState(game.StartState{Server: p1})

	for {
		state := g.rallies(ctx)
		if game.IsTerminal(state) || g.board.Quitting() || ctx.Err() != nil {
			return state, nil
		}

		g.logger.Info("game paused", "state", state.Name())
		if !g.waitResume(ctx) {
			return state, nil
		}
		g.logger.Info("game resumed", "serving", g.board.Serving())

		// captures from before the pause are stale
		if n := g.queue.Clear(); n > 0 {
			g.metrics.RecordDequeue(ctx, n)
		}
		g.rally.NewPoint()
		g.board.SetState(game.StartState{Server: g.board.Serving()})
	}
}

// rallies feeds game events through the state machine until a terminal
// state, a pause or a quit
func (g *Game) rallies(ctx context.Context) game.State {
	state := g.board.State()

	for {
		if game.IsTerminal(state) || g.board.Quitting() || g.board.Paused() || ctx.Err() != nil {
			return state
		}

		var ev game.Event
		switch state.(type) {
		case game.ScoreState:
			g.settle(ctx)
			if g.board.Paused() || g.board.Quitting() {
				return state
			}
			ev = g.coord.WaitForEvent(ctx, g.opts.ServeTimeout, game.StatePlayer(state))
		case game.StartState:
			ev = g.coord.WaitForEvent(ctx, g.opts.ServeTimeout, game.StatePlayer(state))
		default:
			ev = g.coord.WaitForEvent(ctx, g.opts.EventTimeout, game.StatePlayer(state))
		}

		// an event produced by a pause or quit wake is not a game event
		if g.board.Paused() || g.board.Quitting() || ctx.Err() != nil {
			return state
		}

		if ev.Kind == game.ContactEvent && ev.Player != nil {
			switch state.(type) {
			case game.StartState, game.ScoreState:
				g.board.SetServing(ev.Player)
			}
		}

		next := g.rally.Transition(state, ev)
		g.logger.Debug("transition", "from", state.Name(), "event", ev.Kind, "player", ev.Player, "to", next.Name())
		g.board.SetState(next)
		state = next

		if st, ok := state.(game.ScoreState); ok {
			after := g.board.UpdateScore(st)
			g.metrics.RecordPoint(ctx, st.Player.String())
			if game.IsTerminal(after) {
				g.board.SetState(after)
				return after
			}
		}
	}
}

// settle ignores sounds for the post-score period and drops anything queued
// before the next serve
func (g *Game) settle(ctx context.Context) {
	g.engine.SetEnabled(false)
	defer func() {
		g.engine.SetEnabled(!g.board.Paused())
	}()

	if n := g.queue.Clear(); n > 0 {
		g.metrics.RecordDequeue(ctx, n)
		g.logger.Debug("dropped captures after point", "count", n)
	}
	g.rally.NewPoint()

	if g.opts.PostScoreTimeout <= 0 {
		return
	}
	timer := time.NewTimer(g.opts.PostScoreTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// waitResume blocks while the game is paused. It returns false on quit or
// cancellation.
func (g *Game) waitResume(ctx context.Context) bool {
	for g.board.Paused() {
		if g.board.Quitting() {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-g.wake:
		}
	}
	return !g.board.Quitting()
}

// finishWhenDrained quits once a finite source has been played out: the queue
// is empty and one event timeout has passed for the last rally to resolve
func (g *Game) finishWhenDrained(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for g.queue.Ready() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	timer := time.NewTimer(g.opts.EventTimeout + 100*time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	g.logger.Info("recording finished, stopping game")
	g.board.Quit()
}

// announce tells the players how the game ended
func (g *Game) announce(final game.State) {
	var msg string
	switch st := final.(type) {
	case game.EndState:
		w, l := g.board.Scores()
		if st.Winner != nil && st.Winner.ID == 2 {
			w, l = l, w
		}
		msg = fmt.Sprintf("%s wins %d to %d", st.Winner, w, l)
	case game.ErrorState:
		msg = fmt.Sprintf("something went wrong, error message: %s", st.Msg)
	default:
		if g.board.Quitting() {
			g.logger.Info("game quit", "state", final.Name())
			return
		}
		msg = fmt.Sprintf("unexpected end state: %s", final.Name())
	}

	g.logger.Info("game over", "result", msg)
	if err := g.board.Message(msg); err != nil {
		g.logger.Warn("failed to show result", "error", err)
	}
}
