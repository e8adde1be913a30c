package app

import (
	"context"
	"log/slog"

	"github.com/emmett/pingpong/internal/game"
)

// SnapshotSink receives scoreboard snapshots
type SnapshotSink interface {
	WriteSnapshot(s game.Snapshot) error
}

// SinkFunc adapts a function to SnapshotSink
type SinkFunc func(game.Snapshot) error

// WriteSnapshot calls f
func (f SinkFunc) WriteSnapshot(s game.Snapshot) error {
	return f(s)
}

// Presenter delivers scoreboard snapshots to slow sinks (console, event log,
// MQTT) off the game goroutine. When the sinks fall behind, the oldest
// undelivered snapshot is dropped.
type Presenter struct {
	ch     chan game.Snapshot
	sinks  []SnapshotSink
	logger *slog.Logger
}

// NewPresenter creates a presenter for sinks
func NewPresenter(sinks ...SnapshotSink) *Presenter {
	return &Presenter{
		ch:     make(chan game.Snapshot, 64),
		sinks:  sinks,
		logger: slog.Default().With("component", "presenter"),
	}
}

// AddSink registers another sink. It must be called before Run.
func (p *Presenter) AddSink(s SnapshotSink) {
	p.sinks = append(p.sinks, s)
}

// Publish queues a snapshot without blocking. It is suitable as a
// Scoreboard subscriber.
func (p *Presenter) Publish(s game.Snapshot) {
	for {
		select {
		case p.ch <- s:
			return
		default:
		}
		select {
		case <-p.ch:
		default:
		}
	}
}

// Run delivers snapshots until ctx is done, then flushes what is queued
func (p *Presenter) Run(ctx context.Context) error {
	for {
		select {
		case s := <-p.ch:
			p.deliver(s)
		case <-ctx.Done():
			for {
				select {
				case s := <-p.ch:
					p.deliver(s)
				default:
					return nil
				}
			}
		}
	}
}

func (p *Presenter) deliver(s game.Snapshot) {
	for _, sink := range p.sinks {
		if err := sink.WriteSnapshot(s); err != nil {
			p.logger.Warn("failed to deliver snapshot", "seq", s.Seq, "error", err)
		}
	}
}
