package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emmett/pingpong/internal/direction"
	"github.com/emmett/pingpong/internal/segment"
)

// Polarity holds the sign applied to the right channel
type Polarity interface {
	Polarity() int
	SetPolarity(p int)
}

// Calibrator names the players and learns which side each one is on
type Calibrator struct {
	board    *Scoreboard
	coord    *Coordinator
	polarity Polarity
	timeout  time.Duration
	askNames bool
}

// NewCalibrator creates a calibrator. timeout bounds each wait for a bounce.
func NewCalibrator(board *Scoreboard, coord *Coordinator, polarity Polarity, timeout time.Duration, askNames bool) *Calibrator {
	return &Calibrator{
		board:    board,
		coord:    coord,
		polarity: polarity,
		timeout:  timeout,
		askNames: askNames,
	}
}

// Run asks for names, then has each player bounce the ball on their paddle
// until they confirm the detected side. A rejected guess re-estimates the
// channel polarity from that bounce.
func (c *Calibrator) Run(ctx context.Context) error {
	p1, p2 := c.board.Players()

	if c.askNames {
		for _, p := range []*Player{p1, p2} {
			if err := c.askName(p); err != nil {
				return err
			}
		}
	}

	for _, p := range []*Player{p1, p2} {
		if err := c.locate(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Calibrator) askName(p *Player) error {
	ok, err := c.board.Confirm(fmt.Sprintf("Enter a name for %s?", p))
	if err != nil {
		return fmt.Errorf("failed to ask for name: %w", err)
	}
	if !ok {
		return nil
	}

	name, err := c.board.Input(fmt.Sprintf("Name for %s", p))
	if err != nil {
		return fmt.Errorf("failed to read name: %w", err)
	}
	if name != "" {
		c.board.SetName(p, name)
	}
	return nil
}

func (c *Calibrator) locate(ctx context.Context, p *Player) error {
	for {
		if err := c.board.Message(fmt.Sprintf("%s: bounce the ball on your paddle", p)); err != nil {
			return fmt.Errorf("failed to show message: %w", err)
		}

		capture, err := c.coord.WaitForCapture(ctx, c.timeout)
		switch {
		case errors.Is(err, segment.ErrTimeout), errors.Is(err, segment.ErrWoken):
			slog.Info("no bounce heard during calibration", "player", p)
			continue
		case err != nil:
			return fmt.Errorf("calibration interrupted: %w", err)
		}

		side, angle := c.coord.EstimateSide(capture)
		ok, err := c.board.Confirm(fmt.Sprintf("It seems %s is on the %s side of the table, is this correct?", p, side))
		if err != nil {
			return fmt.Errorf("failed to confirm side: %w", err)
		}
		if ok {
			c.board.SetPosition(p, side)
			slog.Info("player located", "player", p, "side", side, "angle", angle)
			return nil
		}

		// The bounce was captured with the current polarity applied, so an
		// anti-correlated capture means the sign must flip.
		if c.polarity == nil {
			continue
		}
		current := c.polarity.Polarity()
		estimated := current * direction.EstimatePolarity(capture.Left, capture.Right)
		if estimated == current {
			slog.Info("estimated polarity matches the configured value", "polarity", current)
		} else {
			slog.Info("estimated polarity differs from the configured value, updating", "from", current, "to", estimated)
			c.polarity.SetPolarity(estimated)
		}
	}
}
