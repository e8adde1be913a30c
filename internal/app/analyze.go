package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/emmett/pingpong/internal/audio"
	"github.com/emmett/pingpong/internal/direction"
	"github.com/emmett/pingpong/internal/dsp"
	"github.com/emmett/pingpong/internal/segment"
)

// Hit is one capture found by Analyze
type Hit struct {
	ID       uuid.UUID `json:"id"`
	StartIdx uint64    `json:"start_idx"`
	EndIdx   uint64    `json:"end_idx"`
	Seconds  float64   `json:"seconds"`
	MeanRMS  float64   `json:"mean_rms"`
	Accepted bool      `json:"accepted"`
	Delay    int       `json:"delay"`
	Angle    float64   `json:"angle"`
	Side     string    `json:"side"`
}

// Analysis is the offline result for a recording
type Analysis struct {
	Frames   uint64            `json:"frames"`
	Hits     []Hit             `json:"hits"`
	Captures []segment.Capture `json:"-"`
}

// Analyze runs a recording through the filter, segmentation and direction
// estimation as fast as it can be read. Every capture is reported, with
// Accepted set for those loud enough to count as game events.
func Analyze(source audio.Source, opts Options, sampleRate float64) (*Analysis, error) {
	sections, err := dsp.Design(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to design filter: %w", err)
	}
	engine, err := segment.NewEngine(opts.Segment, nil, nil)
	if err != nil {
		return nil, err
	}
	estimator, err := direction.New(opts.Technique, opts.MaxDelay)
	if err != nil {
		return nil, err
	}

	producer := NewProducer(source, opts.BlockFrames, sections, engine, opts.Polarity)
	result := &Analysis{}

	for {
		block, err := source.Read(opts.BlockFrames * 2)
		if len(block) > 0 {
			for _, c := range producer.ProcessBlock(block) {
				result.Captures = append(result.Captures, c)
				result.Hits = append(result.Hits, describe(c, estimator, opts.MeanEnergyMin, sampleRate))
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read recording: %w", err)
		}
	}

	result.Frames = producer.Frames()
	slog.Info("analysis complete", "frames", result.Frames, "captures", len(result.Hits))
	return result, nil
}

func describe(c segment.Capture, estimator *direction.Estimator, meanEnergyMin, sampleRate float64) Hit {
	delay := estimator.EstimateDelay(c.Left, c.Right)
	angle := direction.DelayToAngle(delay, estimator.MaxDelay())
	energy := c.MeanRMS()

	h := Hit{
		ID:       c.ID,
		StartIdx: c.StartIdx,
		EndIdx:   c.EndIdx,
		MeanRMS:  energy,
		Accepted: energy > meanEnergyMin,
		Delay:    delay,
		Angle:    angle,
		Side:     direction.SideFromAngle(angle).String(),
	}
	if sampleRate > 0 {
		h.Seconds = float64(c.StartIdx) / sampleRate
	}
	return h
}
