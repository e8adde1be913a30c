// Package observe provides the OpenTelemetry metrics recorded while a game
// runs. A Prometheus exporter bridge is available via [InitProvider] so the
// counters can be scraped from /metrics.
//
// All Record methods are safe to call on a nil *Metrics, which keeps metrics
// optional for offline tools and tests.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all pingpong metrics.
const meterName = "github.com/emmett/pingpong"

// Metrics holds the metric instruments for the capture and game pipeline.
type Metrics struct {
	// BlocksProcessed counts audio blocks run through segmentation.
	BlocksProcessed metric.Int64Counter

	// CapturesFinalized counts captures handed to the queue. Use with attribute:
	//   attribute.String("reason", "quiet"|"overflow")
	CapturesFinalized metric.Int64Counter

	// CapturesDiscarded counts captures dropped because capture was disabled.
	CapturesDiscarded metric.Int64Counter

	// CaptureDecisions counts captures judged by the coordinator. Use with attribute:
	//   attribute.String("decision", "accepted"|"rejected")
	CaptureDecisions metric.Int64Counter

	// EventWaitDuration tracks how long the game waited for each event. Use with attribute:
	//   attribute.String("kind", "contact"|"timeout")
	EventWaitDuration metric.Float64Histogram

	// Points counts points scored. Use with attribute:
	//   attribute.String("player", ...)
	Points metric.Int64Counter

	// QueueDepth tracks captures waiting to be consumed.
	QueueDepth metric.Int64UpDownCounter
}

// waitBuckets defines histogram bucket boundaries (in seconds) spanning a
// quick rally return up to a long wait for the serve.
var waitBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BlocksProcessed, err = m.Int64Counter("pingpong.audio.blocks",
		metric.WithDescription("Audio blocks run through segmentation."),
	); err != nil {
		return nil, err
	}
	if met.CapturesFinalized, err = m.Int64Counter("pingpong.captures.finalized",
		metric.WithDescription("Captures queued for the game, by finalize reason."),
	); err != nil {
		return nil, err
	}
	if met.CapturesDiscarded, err = m.Int64Counter("pingpong.captures.discarded",
		metric.WithDescription("Captures dropped while capture was disabled."),
	); err != nil {
		return nil, err
	}
	if met.CaptureDecisions, err = m.Int64Counter("pingpong.captures.decisions",
		metric.WithDescription("Captures accepted or rejected by energy."),
	); err != nil {
		return nil, err
	}
	if met.EventWaitDuration, err = m.Float64Histogram("pingpong.event.wait",
		metric.WithDescription("Time spent waiting for a game event."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(waitBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Points, err = m.Int64Counter("pingpong.points",
		metric.WithDescription("Points scored by player."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("pingpong.captures.pending",
		metric.WithDescription("Captures waiting to be consumed."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordBlock counts one processed audio block.
func (m *Metrics) RecordBlock(ctx context.Context) {
	if m == nil {
		return
	}
	m.BlocksProcessed.Add(ctx, 1)
}

// RecordCapture counts a queued capture.
func (m *Metrics) RecordCapture(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.CapturesFinalized.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	m.QueueDepth.Add(ctx, 1)
}

// RecordDiscard counts a capture dropped while capture was disabled.
func (m *Metrics) RecordDiscard(ctx context.Context) {
	if m == nil {
		return
	}
	m.CapturesDiscarded.Add(ctx, 1)
}

// RecordDequeue lowers the pending gauge by n.
func (m *Metrics) RecordDequeue(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.QueueDepth.Add(ctx, int64(-n))
}

// RecordDecision counts an accepted or rejected capture.
func (m *Metrics) RecordDecision(ctx context.Context, accepted bool) {
	if m == nil {
		return
	}
	decision := "rejected"
	if accepted {
		decision = "accepted"
	}
	m.CaptureDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

// RecordWait records how long a wait for an event took.
func (m *Metrics) RecordWait(ctx context.Context, d time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	kind := "contact"
	if timedOut {
		kind = "timeout"
	}
	m.EventWaitDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordPoint counts a point for player.
func (m *Metrics) RecordPoint(ctx context.Context, player string) {
	if m == nil {
		return
	}
	m.Points.Add(ctx, 1, metric.WithAttributes(attribute.String("player", player)))
}
