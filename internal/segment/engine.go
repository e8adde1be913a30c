package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/emmett/pingpong/internal/dsp"
	"github.com/emmett/pingpong/internal/observe"
)

// Config holds segmentation parameters. Lengths are in samples per channel.
type Config struct {
	// WindowLen is the classification window
	WindowLen int

	// EnergyThresh is the RMS a window must exceed on either channel to be loud
	EnergyThresh float64

	// MaxCaptureLen is the circular buffer length and caps capture size
	MaxCaptureLen int

	// Padding is added before and after every capture
	Padding int
}

// DefaultConfig returns segmentation defaults for a 48 kHz stream
func DefaultConfig() Config {
	return Config{
		WindowLen:     480,
		EnergyThresh:  50,
		MaxCaptureLen: 5 * 48000,
		Padding:       50,
	}
}

// Validate checks the buffer can hold a padded window
func (c Config) Validate() error {
	if c.WindowLen <= 0 {
		return errors.New("window length must be positive")
	}
	if c.Padding < 0 || c.Padding > c.WindowLen {
		return fmt.Errorf("padding %d must be between 0 and the window length %d", c.Padding, c.WindowLen)
	}
	if c.MaxCaptureLen <= c.WindowLen+2*c.Padding {
		return fmt.Errorf("max capture length %d must exceed a padded window (%d)", c.MaxCaptureLen, c.WindowLen+2*c.Padding)
	}
	if c.EnergyThresh < 0 {
		return errors.New("energy threshold must not be negative")
	}
	return nil
}

// Engine segments a filtered two-channel stream into captures.
//
// Process must be called from a single goroutine. SetEnabled may be called
// from any goroutine.
type Engine struct {
	cfg     Config
	queue   *Queue
	metrics *observe.Metrics
	logger  *slog.Logger

	left     []float64
	right    []float64
	writeIdx int
	written  uint64

	capturing   bool
	minPos      uint64
	maxPos      uint64
	startSignal uint64
	endSignal   uint64
	openEnabled bool

	enabled atomic.Bool
}

// NewEngine creates a segmentation engine that pushes captures to queue.
// queue may be nil, in which case captures are only returned from Process.
func NewEngine(cfg Config, queue *Queue, metrics *observe.Metrics) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid segmentation config: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		queue:   queue,
		metrics: metrics,
		logger:  slog.Default().With("component", "segment"),
		left:    make([]float64, cfg.MaxCaptureLen),
		right:   make([]float64, cfg.MaxCaptureLen),
	}
	e.enabled.Store(true)
	return e, nil
}

// SetEnabled opens or closes the capture gate. While closed, finished
// captures are discarded but segmentation keeps running.
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
}

// Enabled reports whether finished captures are being queued
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// WriteIndex returns the next circular buffer position to be written
func (e *Engine) WriteIndex() int {
	return e.writeIdx
}

// Written returns the total samples per channel written so far
func (e *Engine) Written() uint64 {
	return e.written
}

// Capturing reports whether a loud run is in progress
func (e *Engine) Capturing() bool {
	return e.capturing
}

// Process writes one block into the circular buffers and classifies it window
// by window. frameOffset is the stream position of the block's first sample
// and is used for the capture's signal indices.
//
// Captures finished in this block are returned and, when the gate is open,
// pushed to the queue. Samples past the last whole window are buffered but not
// classified.
func (e *Engine) Process(left, right []float64, frameOffset uint64) []Capture {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	base := e.written
	e.write(left[:n], right[:n])

	ctx := context.Background()
	e.metrics.RecordBlock(ctx)

	var out []Capture
	w := e.cfg.WindowLen
	for lb := 0; lb+w <= n; lb += w {
		ub := lb + w
		loud := dsp.RMS(left[lb:ub]) > e.cfg.EnergyThresh || dsp.RMS(right[lb:ub]) > e.cfg.EnergyThresh

		switch {
		case loud && !e.capturing:
			e.capturing = true
			e.openEnabled = e.enabled.Load()
			e.minPos = base + uint64(lb)
			e.maxPos = base + uint64(ub)
			e.startSignal = frameOffset + uint64(lb)
			e.endSignal = frameOffset + uint64(ub)
		case loud && e.capturing:
			e.maxPos = base + uint64(ub)
			e.endSignal = frameOffset + uint64(ub)
			// finalize while the padded run still fits; another window would not
			if int(e.maxPos-e.minPos)+2*e.cfg.Padding+w > e.cfg.MaxCaptureLen {
				e.logger.Warn("capture reached buffer capacity, finalizing early",
					"samples", e.maxPos-e.minPos, "max_capture_len", e.cfg.MaxCaptureLen)
				if c, ok := e.finalize(ctx, "overflow"); ok {
					out = append(out, c)
				}
			}
		case !loud && e.capturing:
			if c, ok := e.finalize(ctx, "quiet"); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// write copies a block into the circular buffers, wrapping at the end
func (e *Engine) write(left, right []float64) {
	size := len(e.left)
	for off := 0; off < len(left); {
		chunk := len(left) - off
		if room := size - e.writeIdx; chunk > room {
			chunk = room
		}
		copy(e.left[e.writeIdx:], left[off:off+chunk])
		copy(e.right[e.writeIdx:], right[off:off+chunk])
		e.writeIdx = (e.writeIdx + chunk) % size
		off += chunk
	}
	e.written += uint64(len(left))
}

// finalize extracts [minPos-Padding, maxPos+Padding), limited to the samples
// still held in the buffers, and closes the capture.
// The capture is queued only if the gate was open when it started and is
// still open now.
func (e *Engine) finalize(ctx context.Context, reason string) (Capture, bool) {
	e.capturing = false

	size := int64(len(e.left))
	start := int64(e.minPos) - int64(e.cfg.Padding)
	end := int64(e.maxPos) + int64(e.cfg.Padding)
	if end > int64(e.written) {
		end = int64(e.written)
	}
	// samples older than one buffer length have been overwritten
	if oldest := int64(e.written) - size; start < oldest {
		start = oldest
	}
	length := int(end - start)

	c := Capture{
		ID:       uuid.New(),
		Left:     make([]float64, length),
		Right:    make([]float64, length),
		StartIdx: e.startSignal,
		EndIdx:   e.endSignal,
	}
	for k := 0; k < length; k++ {
		idx := ((start+int64(k))%size + size) % size
		c.Left[k] = e.left[idx]
		c.Right[k] = e.right[idx]
	}

	if !e.openEnabled || !e.enabled.Load() {
		e.logger.Debug("discarding capture while capture is disabled", "start", c.StartIdx, "end", c.EndIdx)
		e.metrics.RecordDiscard(ctx)
		return Capture{}, false
	}

	if e.queue != nil {
		e.queue.Push(c)
	}
	e.metrics.RecordCapture(ctx, reason)
	return c, true
}
