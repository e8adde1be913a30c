package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/emmett/pingpong/internal/audio"
	"github.com/emmett/pingpong/internal/dsp"
	"github.com/emmett/pingpong/internal/segment"
)

// Producer reads interleaved blocks from a source, applies the right channel
// polarity and the band-pass filter, and feeds the segmentation engine.
type Producer struct {
	source      audio.Source
	blockFrames int
	left, right *dsp.Filter
	engine      *segment.Engine
	recorder    *audio.WavRecorder
	logger      *slog.Logger

	polarity atomic.Int32
	frames   uint64
}

// NewProducer creates a producer. Both channels share the filter design and
// keep separate filter state.
func NewProducer(source audio.Source, blockFrames int, sections dsp.Sections, engine *segment.Engine, polarity int) *Producer {
	p := &Producer{
		source:      source,
		blockFrames: blockFrames,
		left:        dsp.NewFilter(sections),
		right:       dsp.NewFilter(sections),
		engine:      engine,
		logger:      slog.Default().With("component", "producer"),
	}
	p.polarity.Store(int32(polarity))
	return p
}

// SetRecorder writes every raw block to r as it is read
func (p *Producer) SetRecorder(r *audio.WavRecorder) {
	p.recorder = r
}

// Polarity returns the sign applied to the right channel
func (p *Producer) Polarity() int {
	return int(p.polarity.Load())
}

// SetPolarity changes the sign applied to the right channel from the next block
func (p *Producer) SetPolarity(polarity int) {
	if polarity >= 0 {
		polarity = 1
	} else {
		polarity = -1
	}
	p.polarity.Store(int32(polarity))
	p.logger.Info("channel polarity updated", "polarity", polarity)
}

// Frames returns the number of frames processed
func (p *Producer) Frames() uint64 {
	return p.frames
}

// Run reads blocks until ctx is done or the source is exhausted. An exhausted
// source returns io.EOF once its last block has been processed.
func (p *Producer) Run(ctx context.Context) error {
	n := p.blockFrames * 2
	for {
		if ctx.Err() != nil {
			return nil
		}

		block, err := p.source.Read(n)
		if len(block) > 0 {
			p.ProcessBlock(block)
			if p.recorder != nil {
				if werr := p.recorder.Write(block); werr != nil {
					p.logger.Error("recording failed, continuing without it", "error", werr)
					p.recorder = nil
				}
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			p.logger.Info("audio source exhausted", "frames", p.frames)
			return io.EOF
		case errors.Is(err, audio.ErrReadTimeout):
			p.logger.Warn("no audio from device", "error", err)
			// the stream has a gap; stale filter state would ring into what follows
			p.left.Reset()
			p.right.Reset()
		default:
			return fmt.Errorf("audio read failed: %w", err)
		}
	}
}

// ProcessBlock deinterleaves, filters and segments one interleaved block and
// returns the captures it finished
func (p *Producer) ProcessBlock(block []int16) []segment.Capture {
	l, r := dsp.Deinterleave(block, p.Polarity())
	left := p.left.Process(l)
	right := p.right.Process(r)

	captures := p.engine.Process(left, right, p.frames)
	p.frames += uint64(len(l))
	return captures
}
