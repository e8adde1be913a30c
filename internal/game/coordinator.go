package game

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/emmett/pingpong/internal/direction"
	"github.com/emmett/pingpong/internal/observe"
	"github.com/emmett/pingpong/internal/segment"
)

// ErrQuit is returned when the scoreboard asked the game to stop
var ErrQuit = errors.New("game is quitting")

// Coordinator turns queued captures into game events
type Coordinator struct {
	queue         *segment.Queue
	estimator     *direction.Estimator
	board         *Scoreboard
	meanEnergyMin float64
	metrics       *observe.Metrics
	logger        *slog.Logger
}

// NewCoordinator creates a coordinator reading from queue. Captures whose mean
// channel RMS does not exceed meanEnergyMin are dropped.
func NewCoordinator(queue *segment.Queue, estimator *direction.Estimator, board *Scoreboard, meanEnergyMin float64, metrics *observe.Metrics) *Coordinator {
	return &Coordinator{
		queue:         queue,
		estimator:     estimator,
		board:         board,
		meanEnergyMin: meanEnergyMin,
		metrics:       metrics,
		logger:        slog.Default().With("component", "coordinator"),
	}
}

// WaitForCapture returns the next capture loud enough to accept. Rejected
// captures are dropped and waiting resumes with whatever is left of timeout.
//
// Errors are segment.ErrTimeout, segment.ErrWoken, ErrQuit or the context error.
func (c *Coordinator) WaitForCapture(ctx context.Context, timeout time.Duration) (segment.Capture, error) {
	deadline := time.Now().Add(timeout)

	for {
		if c.board != nil && c.board.Quitting() {
			return segment.Capture{}, ErrQuit
		}

		capture, err := c.queue.Pop(ctx, time.Until(deadline))
		if err != nil {
			if c.board != nil && c.board.Quitting() {
				return segment.Capture{}, ErrQuit
			}
			return segment.Capture{}, err
		}
		c.metrics.RecordDequeue(ctx, 1)

		energy := capture.MeanRMS()
		if energy > c.meanEnergyMin {
			c.metrics.RecordDecision(ctx, true)
			return capture, nil
		}

		c.metrics.RecordDecision(ctx, false)
		c.logger.Debug("rejected quiet capture",
			"id", capture.ID, "mean_rms", energy, "min", c.meanEnergyMin)
	}
}

// EstimateSide returns the side a capture came from and its angle in degrees
func (c *Coordinator) EstimateSide(capture segment.Capture) (direction.Side, float64) {
	return c.estimator.EstimateSide(capture.Left, capture.Right)
}

// WaitForEvent waits up to timeout for an accepted capture and maps it to the
// player on that side. Anything else, including a wake with nothing queued,
// is a Timeout event for current.
func (c *Coordinator) WaitForEvent(ctx context.Context, timeout time.Duration, current *Player) Event {
	start := time.Now()

	capture, err := c.WaitForCapture(ctx, timeout)
	if err != nil {
		c.metrics.RecordWait(ctx, time.Since(start), true)
		c.logger.Debug("no event", "reason", err, "player", current)
		return Event{Player: current, Kind: Timeout}
	}
	c.metrics.RecordWait(ctx, time.Since(start), false)

	side, angle := c.EstimateSide(capture)
	var player *Player
	if c.board != nil {
		player = c.board.PlayerAt(side)
	}

	c.logger.Debug("contact",
		"side", side, "angle", angle, "mean_rms", capture.MeanRMS(), "player", player)
	return Event{Player: player, Kind: ContactEvent, Angle: angle}
}
