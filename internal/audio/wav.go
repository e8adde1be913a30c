package audio

import (
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavSource replays a recorded two-channel 16-bit wav file as a Source
type WavSource struct {
	samples    []int
	pos        int
	sampleRate uint32
	realtime   bool
	started    time.Time
}

// NewWavSource loads path. With realtime set, Read paces delivery to the
// file's sample rate so a replay behaves like a live device.
func NewWavSource(path string, realtime bool) (*WavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}
	if dec.NumChans != 2 {
		return nil, fmt.Errorf("%w: %s has %d", ErrUnsupportedChannels, path, dec.NumChans)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d in %s, 16 is required", dec.BitDepth, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav file: %w", err)
	}

	return &WavSource{
		samples:    buf.Data,
		sampleRate: dec.SampleRate,
		realtime:   realtime,
	}, nil
}

// SampleRate returns the file's sample rate
func (w *WavSource) SampleRate() uint32 {
	return w.sampleRate
}

// Read returns the next n interleaved samples. The final read may be short
// and is followed by io.EOF.
func (w *WavSource) Read(n int) ([]int16, error) {
	if w.pos >= len(w.samples) {
		return nil, io.EOF
	}
	if w.realtime {
		w.pace()
	}

	end := w.pos + n
	if end > len(w.samples) {
		end = len(w.samples)
	}
	out := make([]int16, end-w.pos)
	for i, s := range w.samples[w.pos:end] {
		out[i] = int16(s)
	}
	w.pos = end
	return out, nil
}

// pace sleeps until the wall clock catches up with the samples delivered
func (w *WavSource) pace() {
	if w.started.IsZero() {
		w.started = time.Now()
		return
	}
	frames := w.pos / 2
	due := w.started.Add(time.Duration(float64(frames) / float64(w.sampleRate) * float64(time.Second)))
	if wait := time.Until(due); wait > 0 {
		time.Sleep(wait)
	}
}

// Close releases the decoded samples
func (w *WavSource) Close() error {
	w.samples = nil
	return nil
}

// WavRecorder writes the raw interleaved stream to a 16-bit wav file
type WavRecorder struct {
	file     *os.File
	encoder  *wav.Encoder
	format   *goaudio.Format
	frames   int
	channels int
}

// NewWavRecorder creates path and prepares a 16-bit PCM encoder
func NewWavRecorder(path string, sampleRate, channels int) (*WavRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	return &WavRecorder{
		file:     f,
		encoder:  wav.NewEncoder(f, sampleRate, 16, channels, 1),
		format:   &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		channels: channels,
	}, nil
}

// Write appends one interleaved block
func (r *WavRecorder) Write(block []int16) error {
	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}

	buf := &goaudio.IntBuffer{
		Format:         r.format,
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := r.encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	r.frames += len(block) / r.channels
	return nil
}

// Frames returns the number of frames written
func (r *WavRecorder) Frames() int {
	return r.frames
}

// Close finalises the wav header and closes the file
func (r *WavRecorder) Close() error {
	if err := r.encoder.Close(); err != nil {
		r.file.Close()
		return fmt.Errorf("failed to finalize recording: %w", err)
	}
	return r.file.Close()
}
